package services

import "buchhaltung/internal/core"

// View-model rows. Every field is already resolved and formatted for display;
// tables are rendered from these lists only.
type (
	IncomeRow struct {
		ID          core.ID
		Date        string
		Project     string
		Client      string
		Category    string
		Amount      string
		Status      string
		Description string
	}

	ExpenseRow struct {
		ID          core.ID
		Date        string
		Project     string
		Vendor      string
		Category    string
		Amount      string
		Description string
	}

	ProjectRow struct {
		ID      core.ID
		Name    string
		Client  string
		Status  string
		Income  string
		Expense string
		Profit  string
	}

	ClientRow struct {
		ID    core.ID
		Name  string
		Email string
		Phone string
	}

	DocumentRow struct {
		ID      core.ID
		Number  string
		Type    core.DocumentType
		Client  string
		Project string
		Status  string
		Total   string
	}
)

// missingDocNumber is shown until the store assigns a number.
const missingDocNumber = "—"

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
