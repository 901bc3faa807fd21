package http

import (
	"log/slog"
	"net/http"
	"time"

	"wagebook/internal/core"
	"wagebook/internal/ledger"
)

type journalLineResponse struct {
	AccountCode string `json:"account_code"`
	Debit       int64  `json:"debit_kobo"`
	Credit      int64  `json:"credit_kobo"`
}

type journalEntryResponse struct {
	ID             int64                 `json:"id"`
	Reference      string                `json:"reference"`
	Description    string                `json:"description"`
	SourceRunID    int64                 `json:"source_run_id,omitempty"`
	Reversal       bool                  `json:"reversal"`
	ReversalReason string                `json:"reversal_reason,omitempty"`
	PostedAt       string                `json:"posted_at"`
	Lines          []journalLineResponse `json:"lines"`
}

func toJournalEntryResponse(e ledger.Entry, postedAt time.Time) journalEntryResponse {
	resp := journalEntryResponse{
		ID:             e.ID,
		Reference:      e.Reference,
		Description:    e.Description,
		SourceRunID:    e.SourceRunID,
		Reversal:       e.Reversal,
		ReversalReason: e.ReversalReason,
		PostedAt:       postedAt.UTC().Format(time.RFC3339),
	}
	for _, l := range e.Lines {
		resp.Lines = append(resp.Lines, journalLineResponse{
			AccountCode: l.AccountCode,
			Debit:       l.Debit.Kobo,
			Credit:      l.Credit.Kobo,
		})
	}
	return resp
}

func (s *Server) handleListJournal(w http.ResponseWriter, r *http.Request, company core.Company) {
	views, err := s.storage.ListJournalEntries(r.Context(), company.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "List journal failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]journalEntryResponse, len(views))
	for i, v := range views {
		out[i] = toJournalEntryResponse(v.Entry, v.Time)
	}
	writeJSON(w, http.StatusOK, out)
}

type trialBalanceRowResponse struct {
	AccountCode string `json:"account_code"`
	AccountName string `json:"account_name"`
	AccountType string `json:"account_type"`
	Debit       int64  `json:"debit_kobo"`
	Credit      int64  `json:"credit_kobo"`
}

type trialBalanceResponse struct {
	Rows        []trialBalanceRowResponse `json:"rows"`
	TotalDebit  int64                     `json:"total_debit_kobo"`
	TotalCredit int64                     `json:"total_credit_kobo"`
	Balanced    bool                      `json:"balanced"`
}

func (s *Server) handleTrialBalance(w http.ResponseWriter, r *http.Request, company core.Company) {
	rows, err := s.storage.TrialBalance(r.Context(), company.ID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Trial balance failed", "error", err, "company_id", company.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := trialBalanceResponse{Rows: make([]trialBalanceRowResponse, len(rows))}
	for i, row := range rows {
		resp.Rows[i] = trialBalanceRowResponse{
			AccountCode: row.AccountCode,
			AccountName: row.AccountName,
			AccountType: row.AccountType,
			Debit:       row.DebitKobo,
			Credit:      row.CreditKobo,
		}
		resp.TotalDebit += row.DebitKobo
		resp.TotalCredit += row.CreditKobo
	}
	resp.Balanced = resp.TotalDebit == resp.TotalCredit
	writeJSON(w, http.StatusOK, resp)
}
