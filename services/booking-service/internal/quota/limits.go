package quota

// Counter names a usage figure compared against a plan limit.
type Counter string

const (
	CounterBookingsMonth Counter = "bookings_month"
	CounterBranches      Counter = "branches"
	CounterEmployees     Counter = "employees"
	CounterServices      Counter = "services"
	CounterCustomers     Counter = "customers"
)

// PlanLimits mirrors the subscription ledger for one tenant. A limit <= 0 is unlimited.
type PlanLimits struct {
	TenantID         string
	Tier             string
	MaxBookingsMonth int
	MaxBranches      int
	MaxEmployees     int
	MaxServices      int
	MaxCustomers     int
}

func (l PlanLimits) Limit(c Counter) int {
	switch c {
	case CounterBookingsMonth:
		return l.MaxBookingsMonth
	case CounterBranches:
		return l.MaxBranches
	case CounterEmployees:
		return l.MaxEmployees
	case CounterServices:
		return l.MaxServices
	case CounterCustomers:
		return l.MaxCustomers
	default:
		return 0
	}
}

// LimitsForTier is used when the ledger has no row for a tenant yet.
func LimitsForTier(tier string) PlanLimits {
	switch tier {
	case "starter":
		return PlanLimits{
			Tier:             "starter",
			MaxBookingsMonth: 100,
			MaxBranches:      1,
			MaxEmployees:     3,
			MaxServices:      10,
			MaxCustomers:     500,
		}
	case "pro":
		return PlanLimits{
			Tier:             "pro",
			MaxBookingsMonth: 2000,
			MaxBranches:      5,
			MaxEmployees:     25,
			MaxServices:      100,
			MaxCustomers:     10000,
		}
	case "enterprise":
		return PlanLimits{Tier: "enterprise"}
	default:
		return PlanLimits{
			Tier:             "free",
			MaxBookingsMonth: 30,
			MaxBranches:      1,
			MaxEmployees:     1,
			MaxServices:      5,
			MaxCustomers:     100,
		}
	}
}
