package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"bankfees/internal/catalog"
	"bankfees/internal/core"
	"bankfees/internal/format"
	"bankfees/internal/middleware/trace"
	"bankfees/internal/services"
	"bankfees/internal/wire"
)

// Error codes of the {error, message} body.
const (
	codeBadRequest       = "bad_request"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeRateLimited      = "rate_limited"
	codeUpstream         = "upstream_unavailable"
	codeInternal         = "internal_error"
)

type (
	errorResponse struct {
		Error     string `json:"error"`
		Message   string `json:"message"`
		RequestID string `json:"requestId,omitempty"`
	}

	// accountResponse is a priced account: the wire fee fields plus the bank
	// it belongs to and its totals, numeric and formatted.
	accountResponse struct {
		wire.AccountJSON
		BankID                  string `json:"bankId"`
		BankName                string `json:"bankName"`
		BankType                string `json:"bankType"`
		MonthlyTotal            int64  `json:"monthlyTotal"`
		YearlyTotal             int64  `json:"yearlyTotal"`
		MonthlyTotalFormatted   string `json:"monthlyTotalFormatted"`
		YearlyTotalFormatted    string `json:"yearlyTotalFormatted"`
		MinimumBalanceFormatted string `json:"minimumBalanceFormatted"`
	}

	statsResponse struct {
		Count                          int    `json:"count"`
		AverageMinimumBalance          int64  `json:"averageMinimumBalance"`
		AverageMonthlyTotal            int64  `json:"averageMonthlyTotal"`
		LowestMonthlyTotal             int64  `json:"lowestMonthlyTotal"`
		AverageMinimumBalanceFormatted string `json:"averageMinimumBalanceFormatted"`
		AverageMonthlyTotalFormatted   string `json:"averageMonthlyTotalFormatted"`
		LowestMonthlyTotalFormatted    string `json:"lowestMonthlyTotalFormatted"`
	}

	listingResponse struct {
		Accounts []accountResponse `json:"accounts"`
		Stats    statsResponse     `json:"stats"`
		Total    int               `json:"total"`
		Shown    int               `json:"shown"`
	}

	detailResponse struct {
		Bank     wire.BankJSON     `json:"bank"`
		Accounts []accountResponse `json:"accounts"`
	}

	totalsResponse struct {
		MonthlyTotal          int64  `json:"monthlyTotal"`
		YearlyTotal           int64  `json:"yearlyTotal"`
		MonthlyTotalFormatted string `json:"monthlyTotalFormatted"`
		YearlyTotalFormatted  string `json:"yearlyTotalFormatted"`
	}

	customResponse struct {
		BankID      string            `json:"bankId"`
		BankName    string            `json:"bankName"`
		AccountType string            `json:"accountType"`
		Usage       core.UsageProfile `json:"usage"`
		Default     totalsResponse    `json:"default"`
		Custom      totalsResponse    `json:"custom"`
	}

	comparisonResponse struct {
		// Selection is the banks parameter that reproduces this comparison.
		Selection string           `json:"selection"`
		Banks     []detailResponse `json:"banks"`
		Missing   []string         `json:"missing"`
	}

	changelogResponse struct {
		HTML      string `json:"html"`
		BankCount *int   `json:"bankCount,omitempty"`
	}
)

func newAccountResponse(a core.CalculatedAccount, money *format.Formatter) accountResponse {
	return accountResponse{
		AccountJSON:             wire.ToAccountJSON(a.AccountFees),
		BankID:                  a.BankID,
		BankName:                a.BankName,
		BankType:                string(a.BankType),
		MonthlyTotal:            a.MonthlyTotal,
		YearlyTotal:             a.YearlyTotal,
		MonthlyTotalFormatted:   money.Currency(float64(a.MonthlyTotal)),
		YearlyTotalFormatted:    money.Currency(float64(a.YearlyTotal)),
		MinimumBalanceFormatted: money.Currency(a.MinimumBalance.Value()),
	}
}

func newAccountResponses(accounts []core.CalculatedAccount, money *format.Formatter) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, newAccountResponse(a, money))
	}
	return out
}

func newStatsResponse(s core.Stats, money *format.Formatter) statsResponse {
	return statsResponse{
		Count:                          s.Count,
		AverageMinimumBalance:          s.AverageMinimumBalance,
		AverageMonthlyTotal:            s.AverageMonthlyTotal,
		LowestMonthlyTotal:             s.LowestMonthlyTotal,
		AverageMinimumBalanceFormatted: money.Currency(float64(s.AverageMinimumBalance)),
		AverageMonthlyTotalFormatted:   money.Currency(float64(s.AverageMonthlyTotal)),
		LowestMonthlyTotalFormatted:    money.Currency(float64(s.LowestMonthlyTotal)),
	}
}

func newDetailResponse(d services.Detail, money *format.Formatter) detailResponse {
	return detailResponse{
		Bank:     wire.ToBankJSON(d.Bank),
		Accounts: newAccountResponses(d.Accounts, money),
	}
}

func newTotalsResponse(monthly, yearly int64, money *format.Formatter) totalsResponse {
	return totalsResponse{
		MonthlyTotal:          monthly,
		YearlyTotal:           yearly,
		MonthlyTotalFormatted: money.Currency(float64(monthly)),
		YearlyTotalFormatted:  money.Currency(float64(yearly)),
	}
}

func newCustomResponse(res services.CustomResult, money *format.Formatter) customResponse {
	return customResponse{
		BankID:      res.BankID,
		BankName:    res.BankName,
		AccountType: string(res.Account.Type),
		Usage:       res.Custom.Usage,
		Default:     newTotalsResponse(res.Default.MonthlyTotal, res.Default.YearlyTotal, money),
		Custom:      newTotalsResponse(res.Custom.CustomMonthlyTotal, res.Custom.CustomYearlyTotal, money),
	}
}

func newComparisonResponse(c services.Comparison, sel catalog.Selection, money *format.Formatter) comparisonResponse {
	out := comparisonResponse{
		Selection: sel.Query(),
		Banks:     make([]detailResponse, 0, len(c.Banks)),
		Missing:   c.Missing,
	}
	if out.Missing == nil {
		out.Missing = []string{}
	}
	for _, d := range c.Banks {
		out.Banks = append(out.Banks, newDetailResponse(d, money))
	}
	return out
}

// writeJSON writes v with the given status. Encoding happens before the
// header is sent so a marshal failure can still become a 500.
func writeJSON(w http.ResponseWriter, status int, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal_error","message":"could not encode response"}`, http.StatusInternalServerError)
		return err
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, err = w.Write(append(body, '\n'))
	return err
}

// writeEnvelope writes the {message, data} envelope the bank API uses.
func writeEnvelope(w http.ResponseWriter, status int, message string, data any) error {
	return writeJSON(w, status, wire.Envelope{Message: message, Data: data})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	_ = writeJSON(w, status, errorResponse{
		Error:     code,
		Message:   message,
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// classify maps a service error to a status, an error code and a message
// safe to show the caller.
func classify(err error) (int, string, string) {
	var pe *paramError
	switch {
	case errors.Is(err, core.ErrBankNotFound):
		return http.StatusNotFound, codeNotFound, "Bank not found"
	case errors.Is(err, core.ErrAccountTypeNotFound):
		return http.StatusNotFound, codeNotFound, "Account type not found"
	case errors.As(err, &pe),
		errors.Is(err, core.ErrInvalidSortKey),
		errors.Is(err, core.ErrSelectionLimit),
		errors.Is(err, core.ErrEmptySelection):
		return http.StatusBadRequest, codeBadRequest, err.Error()
	case services.IsUpstreamFailure(err):
		return http.StatusBadGateway, codeUpstream, "bank data source is unavailable, please try again later"
	default:
		return http.StatusInternalServerError, codeInternal, "internal server error"
	}
}
