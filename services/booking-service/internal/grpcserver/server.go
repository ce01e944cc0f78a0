// Package grpcserver exposes the engine as bookwell.booking.v1.BookingEngine. Messages are
// structpb.Struct values keyed like the HTTP JSON bodies.
package grpcserver

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/engine"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

const ServiceName = "bookwell.booking.v1.BookingEngine"

type Engine interface {
	ListAvailability(ctx context.Context, q engine.AvailabilityQuery) (engine.Availability, error)
	Commit(ctx context.Context, req engine.CommitRequest) (engine.CommitResult, error)
	Transition(ctx context.Context, req engine.TransitionRequest) (model.Booking, error)
}

type bookingEngineServer interface {
	ListAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Commit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	Transition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

type server struct {
	engine Engine
	logger *slog.Logger
}

func unary(call func(bookingEngineServer, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := &structpb.Struct{}
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(bookingEngineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(srv.(bookingEngineServer), ctx, req.(*structpb.Struct))
			})
		},
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*bookingEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(bookingEngineServer.ListAvailability, "ListAvailability"),
		unary(bookingEngineServer.Commit, "Commit"),
		unary(bookingEngineServer.Transition, "Transition"),
	},
	Metadata: "bookwell/booking/v1/engine.proto",
}

// Register adds the engine and the standard health service to srv.
func Register(srv *grpc.Server, e Engine, logger *slog.Logger) *health.Server {
	if logger == nil {
		logger = slog.Default()
	}
	srv.RegisterService(&serviceDesc, &server{engine: e, logger: logger})
	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return hs
}

func (s *server) ListAvailability(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	av, err := s.engine.ListAvailability(ctx, engine.AvailabilityQuery{
		TenantID:   str(req, "tenant_id"),
		BranchID:   str(req, "branch_id"),
		ServiceID:  str(req, "service_id"),
		EmployeeID: str(req, "employee_id"),
		Date:       str(req, "date"),
		From:       str(req, "from"),
		To:         str(req, "to"),
		OptionIDs:  strList(req, "option_ids"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	slots := make([]any, 0, len(av.Slots))
	for _, sl := range av.Slots {
		slots = append(slots, map[string]any{
			"time":      sl.Time,
			"start_at":  sl.Start.UTC().Format(time.RFC3339),
			"available": sl.Available,
		})
	}
	dates := make([]any, 0, len(av.Dates))
	for _, d := range av.Dates {
		dates = append(dates, map[string]any{"date": d.Date, "available": d.Available})
	}
	return structpb.NewStruct(map[string]any{
		"mode":             string(av.Mode),
		"date":             av.Date,
		"duration_minutes": av.DurationMinutes,
		"slots":            slots,
		"dates":            dates,
	})
}

func (s *server) Commit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	customer := req.GetFields()["customer"].GetStructValue()
	res, err := s.engine.Commit(ctx, engine.CommitRequest{
		TenantID:     str(req, "tenant_id"),
		BranchID:     str(req, "branch_id"),
		ServiceID:    str(req, "service_id"),
		EmployeeID:   str(req, "employee_id"),
		Date:         str(req, "date"),
		StartTime:    str(req, "start_time"),
		CheckOutDate: str(req, "check_out_date"),
		Customer: model.CustomerIdentity{
			CustomerID: str(customer, "id"),
			Name:       str(customer, "name"),
			Phone:      str(customer, "phone"),
			Email:      str(customer, "email"),
		},
		Notes:          str(req, "notes"),
		OptionIDs:      strList(req, "option_ids"),
		IdempotencyKey: str(req, "idempotency_key"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	out := bookingFields(res.Booking)
	out["replayed"] = res.Replayed
	return structpb.NewStruct(out)
}

func (s *server) Transition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	b, err := s.engine.Transition(ctx, engine.TransitionRequest{
		TenantID:  str(req, "tenant_id"),
		BookingID: str(req, "booking_id"),
		To:        model.Status(strings.ToUpper(str(req, "status"))),
		Reason:    str(req, "reason"),
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}
	return structpb.NewStruct(bookingFields(b))
}

func bookingFields(b model.Booking) map[string]any {
	options := make([]any, 0, len(b.OptionIDs))
	for _, id := range b.OptionIDs {
		options = append(options, id)
	}
	out := map[string]any{
		"id":             b.ID,
		"tenant_id":      b.TenantID,
		"branch_id":      b.BranchID,
		"service_id":     b.ServiceID,
		"employee_id":    b.EmployeeID,
		"resource_id":    b.ResourceID,
		"customer_id":    b.CustomerID,
		"mode":           string(b.Mode),
		"date":           b.Date,
		"start_time":     b.StartTime,
		"end_time":       b.EndTime,
		"check_out_date": b.CheckOutDate,
		"start_at":       b.StartAt.UTC().Format(time.RFC3339),
		"end_at":         b.EndAt.UTC().Format(time.RFC3339),
		"total_nights":   b.TotalNights,
		"total_price":    b.TotalPrice.StringFixed(2),
		"deposit_amount": b.DepositAmount.StringFixed(2),
		"option_ids":     options,
		"status":         string(b.Status),
		"cancel_reason":  b.CancelReason,
	}
	if b.CancelledAt != nil {
		out["cancelled_at"] = b.CancelledAt.UTC().Format(time.RFC3339)
	}
	return out
}

func str(s *structpb.Struct, key string) string {
	return strings.TrimSpace(s.GetFields()[key].GetStringValue())
}

func strList(s *structpb.Struct, key string) []string {
	var out []string
	for _, v := range s.GetFields()[key].GetListValue().GetValues() {
		if id := strings.TrimSpace(v.GetStringValue()); id != "" {
			out = append(out, id)
		}
	}
	return out
}

func codeFor(err error) codes.Code {
	switch {
	case errors.Is(err, model.ErrValidation):
		return codes.InvalidArgument
	case errors.Is(err, model.ErrNotFound):
		return codes.NotFound
	case errors.Is(err, model.ErrNotEligible), errors.Is(err, model.ErrInvalidTransition):
		return codes.FailedPrecondition
	case errors.Is(err, model.ErrOutOfWindow):
		return codes.OutOfRange
	case errors.Is(err, model.ErrSlotConflict):
		return codes.Aborted
	case errors.Is(err, model.ErrQuotaExceeded):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

func (s *server) toStatus(ctx context.Context, err error) error {
	code := codeFor(err)
	if code == codes.Internal {
		s.logger.ErrorContext(ctx, "grpc call failed", "err", err)
		return status.Error(code, "internal error")
	}
	return status.Error(code, err.Error())
}
