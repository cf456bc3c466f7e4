package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/rzbill/datalog/internal/auth"
	datalogsvc "github.com/rzbill/datalog/internal/services/datalog"
	logpkg "github.com/rzbill/datalog/pkg/log"
)

// maxBodyBytes caps request bodies; base64 inflates payloads by a third.
const maxBodyBytes = 1 << 20

// DatalogController serves the record, erase and query endpoints.
//
// Record and erase act on the account resolved from the bearer token and
// never on an account named in the request. Query reads any account.
type DatalogController struct {
	svc    *datalogsvc.Service
	authn  auth.Authenticator
	logger logpkg.Logger
}

func NewDatalogController(svc *datalogsvc.Service, authn auth.Authenticator, logger logpkg.Logger) *DatalogController {
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &DatalogController{svc: svc, authn: authn, logger: logger}
}

// RegisterRoutes registers the /v1/datalog endpoints.
func (c *DatalogController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/datalog/record", c.handleRecord)
	mux.HandleFunc("/v1/datalog/erase", c.handleErase)
	mux.HandleFunc("/v1/datalog/query", c.handleQuery)
}

// authenticate resolves the caller or writes 401.
func (c *DatalogController) authenticate(w http.ResponseWriter, r *http.Request) (string, bool) {
	account, err := c.authn.Authenticate(r.Context(), auth.BearerToken(r.Header.Get("Authorization")))
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthenticated")
		return "", false
	}
	return account, true
}

// handleRecord appends {payload, timestamp_ms} to the caller's log.
func (c *DatalogController) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	account, ok := c.authenticate(w, r)
	if !ok {
		return
	}
	var req recordReq
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	var ts int64
	var err error
	if req.TimestampMs != nil {
		ts, err = c.svc.Record(r.Context(), account, req.Payload, *req.TimestampMs)
	} else {
		ts, err = c.svc.RecordNow(r.Context(), account, req.Payload)
	}
	if err != nil {
		c.fail(w, r, err)
		return
	}
	writeJSON(w, recordResp{Account: account, TimestampMs: ts})
}

// handleErase clears the caller's log.
func (c *DatalogController) handleErase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	account, ok := c.authenticate(w, r)
	if !ok {
		return
	}
	if err := c.svc.Erase(r.Context(), account); err != nil {
		c.fail(w, r, err)
		return
	}
	writeNoContent(w)
}

// handleQuery returns ?account= records oldest first, optionally narrowed
// by ?filter= (CEL) and ?limit=. Without ?account= the caller's own log is
// read.
func (c *DatalogController) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	q := r.URL.Query()
	account := q.Get("account")
	if account == "" {
		var ok bool
		if account, ok = c.authenticate(w, r); !ok {
			return
		}
	}
	recs, err := c.svc.Query(r.Context(), account, datalogsvc.QueryOptions{
		Filter: q.Get("filter"),
		Limit:  parseLimit(q.Get("limit")),
	})
	if err != nil {
		c.fail(w, r, err)
		return
	}
	out := queryResp{Account: account, Records: make([]recordItem, 0, len(recs))}
	for _, rec := range recs {
		out.Records = append(out.Records, recordItem{TimestampMs: rec.Timestamp, Payload: rec.Payload})
	}
	writeJSON(w, out)
}

func (c *DatalogController) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= http.StatusInternalServerError {
		c.logger.WithContext(r.Context()).Error("request failed", logpkg.Str("path", r.URL.Path), logpkg.Err(err))
		writeError(w, code, http.StatusText(code))
		return
	}
	writeError(w, code, err.Error())
}
