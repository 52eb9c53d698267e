package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/0xcafe-io/iz"

	applog "bilancio/internal/log"
)

func (s *Server) handleListCategories(r *iz.Request) iz.Responder {
	cats, err := s.service.ListCategories(r.Context())
	if err != nil {
		return respondError(r.Context(), applog.OpList, err)
	}
	return respondJSON(cats)
}

func (s *Server) handleCreateCategory(r *iz.Request) iz.Responder {
	nc, err := DecodeCategory(r.Body)
	if err != nil {
		return respondError(r.Context(), applog.OpCreate, err)
	}
	cat, err := s.service.CreateCategory(r.Context(), nc)
	if err != nil {
		return respondError(r.Context(), applog.OpCreate, err)
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Category created",
		applog.FieldCategoryID, cat.ID, applog.FieldKind, string(cat.Type))
	return respondJSON(cat)
}

func (s *Server) handleListTransactions(r *iz.Request) iz.Responder {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		return respondError(r.Context(), applog.OpList, err)
	}
	txs, err := s.service.ListTransactions(r.Context(), f)
	if err != nil {
		return respondError(r.Context(), applog.OpList, err)
	}
	return respondJSON(txs)
}

func (s *Server) handleCreateTransaction(r *iz.Request) iz.Responder {
	nt, err := DecodeTransaction(r.Body)
	if err != nil {
		return respondError(r.Context(), applog.OpCreate, err)
	}
	t, err := s.service.CreateTransaction(r.Context(), nt)
	if err != nil {
		return respondError(r.Context(), applog.OpCreate, err)
	}
	fields := applog.NewFields().WithTransaction(t.ID, string(t.Type), t.Amount.String())
	if t.BudgetID != nil {
		fields = fields.WithBudget(*t.BudgetID)
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction created", fields.ToSlice()...)
	return respondJSON(t)
}

func (s *Server) handleDeleteTransaction(r *iz.Request) iz.Responder {
	id, err := ParseID(r.PathValue("id"))
	if err != nil {
		return respondError(r.Context(), applog.OpDelete, err)
	}
	if err := s.service.DeleteTransaction(r.Context(), id); err != nil {
		return respondError(r.Context(), applog.OpDelete, err)
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Transaction deleted", applog.FieldTransactionID, id)
	return iz.Respond().Status(http.StatusOK).Text("")
}

func (s *Server) handleListBudgets(r *iz.Request) iz.Responder {
	budgets, err := s.service.ListBudgets(r.Context())
	if err != nil {
		return respondError(r.Context(), applog.OpList, err)
	}
	return respondJSON(budgets)
}

func (s *Server) handleCreateBudget(r *iz.Request) iz.Responder {
	nb, err := DecodeBudget(r.Body)
	if err != nil {
		return respondError(r.Context(), applog.OpCreate, err)
	}
	b, err := s.service.CreateBudget(r.Context(), nb)
	if err != nil {
		return respondError(r.Context(), applog.OpCreate, err)
	}
	applog.FromContext(r.Context()).InfoContext(r.Context(), "Budget created",
		applog.FieldBudgetID, b.ID, applog.FieldCategoryID, b.CategoryID)
	return respondJSON(b)
}

func (s *Server) handleSummary(r *iz.Request) iz.Responder {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	report, err := s.service.Summary(r.Context(), f)
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	return respondJSON(report)
}

func (s *Server) handleBreakdown(r *iz.Request) iz.Responder {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	shares, err := s.service.Breakdown(r.Context(), f)
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	return respondJSON(shares)
}

func (s *Server) handleMonthly(r *iz.Request) iz.Responder {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	months, err := s.service.Monthly(r.Context(), f)
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	return respondJSON(months)
}

func (s *Server) handleBudgetProgress(r *iz.Request) iz.Responder {
	progress, err := s.service.BudgetProgress(r.Context())
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	return respondJSON(progress)
}

func (s *Server) handleDashboard(r *iz.Request) iz.Responder {
	f, err := ParseFilter(r.URL.Query())
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	d, err := s.service.Dashboard(r.Context(), f)
	if err != nil {
		return respondError(r.Context(), applog.OpAggregate, err)
	}
	return respondJSON(d)
}

func (s *Server) handleHealth(r *iz.Request) iz.Responder {
	return iz.Respond().Status(http.StatusOK).Text("ok")
}

// handleReady reports ready once the server accepts requests and the store
// answers a ping.
func (s *Server) handleReady(r *iz.Request) iz.Responder {
	if !s.started.Load() {
		return iz.Respond().Status(http.StatusServiceUnavailable).Text("starting")
	}
	if err := s.service.Ping(r.Context()); err != nil {
		applog.FromContext(r.Context()).WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err.Error())
		return iz.Respond().Status(http.StatusServiceUnavailable).Text("storage unavailable")
	}
	return iz.Respond().Status(http.StatusOK).Text("ready")
}

// handleMetrics exposes process counters in the Prometheus text format.
func (s *Server) handleMetrics(r *iz.Request) iz.Responder {
	var b strings.Builder
	writeMetric(&b, "bilancio_http_requests_total", "counter", "Total HTTP requests served.", s.trace.TotalRequests())
	writeMetric(&b, "bilancio_rate_limit_hits_total", "counter", "Requests rejected by the rate limiter.", s.limiter.Hits())
	writeMetric(&b, "bilancio_rate_limit_active_clients", "gauge", "Clients tracked by the rate limiter.", int64(s.limiter.ActiveClients()))
	writeMetric(&b, "bilancio_suspicious_requests_total", "counter", "Requests rejected as suspicious.", s.detector.SuspiciousRequests())
	if s.hub != nil {
		writeMetric(&b, "bilancio_event_subscribers", "gauge", "Connected websocket subscribers.", int64(s.hub.ClientCount()))
	}
	return iz.Respond().Status(http.StatusOK).Text(b.String())
}

func writeMetric(b *strings.Builder, name, kind, help string, value int64) {
	fmt.Fprintf(b, "# HELP %s %s\n# TYPE %s %s\n%s %d\n", name, help, name, kind, name, value)
}
