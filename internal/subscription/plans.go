package subscription

import "fmt"

func Plans() []Plan {
	return []Plan{
		{
			Code:        "storage_basic",
			Name:        "Basic",
			Description: "50 GB storage for 30 days",
			Price:       25000,
			StorageGB:   50,
			PeriodDays:  30,
		},
		{
			Code:        "storage_plus",
			Name:        "Plus",
			Description: "200 GB storage for 30 days",
			Price:       75000,
			StorageGB:   200,
			PeriodDays:  30,
		},
		{
			Code:        "storage_pro",
			Name:        "Pro",
			Description: "1 TB storage for 30 days",
			Price:       150000,
			StorageGB:   1024,
			PeriodDays:  30,
		},
	}
}

func FindPlan(code string) (Plan, error) {
	for _, p := range Plans() {
		if p.Code == code {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, code)
}
