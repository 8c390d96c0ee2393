package fees

import "fmt"

// Breakdown explains how the normalized totals are derived.
type Breakdown struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Items       []string `json:"items"`
	Note        string   `json:"note"`
}

// Breakdown describes the policy's normalization with its actual usage numbers.
func (p Policy) Breakdown() Breakdown {
	return Breakdown{
		Title:       "Yearly Total Calculation",
		Description: "Our yearly total is calculated using proper banking fee structure:",
		Items: []string{
			"Annual Charges (charged once per year):",
			"• Account Maintenance Fee (annual)",
			"• Online Banking Fee (annual)",
			"• SMS Banking Fee (annual)",
			"• Debit Card Fee (annual)",
			"• Credit Card Fee (annual)",
			"• Checkbook Fee (annual)",
			"• Statement Fee (annual)",
			"• Other Charges (annual)",
			"",
			"Transaction Charges (monthly × 12):",
			fmt.Sprintf("• ATM Fees: %d transactions at other banks", p.Usage.MonthlyATMOtherBank),
			fmt.Sprintf("• Transfer Fees: %d NSPB + %d BEFTN transactions",
				p.Usage.MonthlyNSPBTransfers, p.Usage.MonthlyBEFTNTransfers),
			"",
			"Monthly Total = Yearly Total ÷ 12",
		},
		Note: "You can customize these calculations on individual bank pages based on your actual usage.",
	}
}
