package customers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/md-rashed-zaman/bookwell/libs/grpcx"
	"github.com/md-rashed-zaman/bookwell/services/booking-service/internal/model"
)

// ResolveMethod is the full gRPC method name served by the external customer directory.
const ResolveMethod = "/bookwell.customers.v1.CustomerDirectory/Resolve"

// Remote delegates to an external directory over gRPC. Messages are structpb.Struct.
type Remote struct {
	conn *grpc.ClientConn
}

func NewRemote(addr string) (*Remote, error) {
	conn, err := grpcx.Dial(addr, grpcx.DialOptions{Timeout: 3 * time.Second})
	if err != nil {
		return nil, err
	}
	return &Remote{conn: conn}, nil
}

func (r *Remote) Close() error {
	return r.conn.Close()
}

func (r *Remote) Resolve(ctx context.Context, tenantID string, id model.CustomerIdentity) (model.Customer, error) {
	id = id.Normalize()
	req, err := structpb.NewStruct(map[string]any{
		"tenant_id":   tenantID,
		"customer_id": id.CustomerID,
		"name":        id.Name,
		"phone":       id.Phone,
		"email":       id.Email,
	})
	if err != nil {
		return model.Customer{}, err
	}
	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, ResolveMethod, req, resp); err != nil {
		return model.Customer{}, fromStatus(err)
	}

	fields := resp.GetFields()
	c := model.Customer{
		ID:        strings.TrimSpace(fields["id"].GetStringValue()),
		TenantID:  tenantID,
		Name:      fields["name"].GetStringValue(),
		Phone:     fields["phone"].GetStringValue(),
		Email:     fields["email"].GetStringValue(),
		Anonymous: fields["anonymous"].GetBoolValue(),
	}
	if c.ID == "" {
		return model.Customer{}, fmt.Errorf("customer directory returned no id")
	}
	return c, nil
}

func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.NotFound:
		return fmt.Errorf("%w: %s", model.ErrNotFound, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", model.ErrValidation, st.Message())
	case codes.ResourceExhausted:
		return fmt.Errorf("%w: %s", model.ErrQuotaExceeded, st.Message())
	default:
		return fmt.Errorf("customer directory: %w", err)
	}
}
