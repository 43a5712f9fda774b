// Package web exposes the calendar editor over HTTP. The course model knows
// nothing about this layer; message keys are rendered into text here and
// nowhere else.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"newscal/internal/config"
	"newscal/internal/course"
	"newscal/internal/editor"
	"newscal/internal/generator"
	"newscal/internal/ics"
	applog "newscal/internal/log"
	"newscal/internal/msg"
	"newscal/internal/store"
)

// Server provides the HTTP API around one editing session.
type Server struct {
	cfg   *config.Config
	mux   *http.ServeMux
	trans *msg.Translator

	// The editor is the single logical owner of the course; HTTP handlers
	// serialize all access through editorMu.
	editorMu sync.Mutex
	editor   *editor.Editor

	manager *generator.Manager
	store   *store.Store
}

// NewServer constructs a new Server around the given collaborators.
func NewServer(cfg *config.Config, ed *editor.Editor, mgr *generator.Manager, st *store.Store, trans *msg.Translator) *Server {
	s := &Server{
		cfg:     cfg,
		mux:     http.NewServeMux(),
		trans:   trans,
		editor:  ed,
		manager: mgr,
		store:   st,
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		applog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// Empty username or password is treated as disabled.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /health is always exposed without authentication.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="newscal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)

	s.mux.HandleFunc("/api/course", s.handleCourse)
	s.mux.HandleFunc("/api/course/download", s.handleDownload)
	s.mux.HandleFunc("/api/course/upload", s.handleUpload)
	s.mux.HandleFunc("/api/course/sheet", s.handleSheet)
	s.mux.HandleFunc("/api/course/split", s.handleSplit)
	s.mux.HandleFunc("/api/course/meta", s.handleMeta)
	s.mux.HandleFunc("/api/course/blocks", s.handleBlocks)
	s.mux.HandleFunc("/api/course/blocks/dates", s.handleBlockDates)
	s.mux.HandleFunc("/api/course/issues", s.handleIssues)
	s.mux.HandleFunc("/api/course/issues/toggle", s.handleIssueToggle)
	s.mux.HandleFunc("/api/course.ics", s.handleCourseICS)

	s.mux.HandleFunc("/api/generate", s.handleGenerate)
	s.mux.HandleFunc("/api/generate/jobs", s.handleGenerateJobs)
	s.mux.HandleFunc("/api/processes", s.handleProcesses)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// messageDTO is the JSON shape of one classified condition: key + args for
// machine consumers, text for humans.
type messageDTO struct {
	Key      string   `json:"key"`
	Args     []string `json:"args,omitempty"`
	Severity string   `json:"severity"`
	Text     string   `json:"text"`
}

func (s *Server) renderMessages(messages []msg.Message) []messageDTO {
	out := make([]messageDTO, 0, len(messages))
	for _, m := range messages {
		severity := "info"
		if m.Severity == msg.SeverityError {
			severity = "error"
		}
		out = append(out, messageDTO{
			Key:      m.Key,
			Args:     m.Args,
			Severity: severity,
			Text:     s.trans.Resolve(m),
		})
	}
	return out
}

// commandResponse is the JSON shape of every mutating command.
type commandResponse struct {
	Messages []messageDTO `json:"messages"`
}

func (s *Server) writeCommandResult(w http.ResponseWriter, messages []msg.Message, err error) {
	status := http.StatusOK
	if err != nil {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, commandResponse{Messages: s.renderMessages(messages)})
}

// issueDTO is a JSON-friendly view of one issue.
type issueDTO struct {
	Heading    string   `json:"heading"`
	Rule       string   `json:"rule,omitempty"`
	Additions  []string `json:"additions,omitempty"`
	Exclusions []string `json:"exclusions,omitempty"`
}

// blockDTO is a JSON-friendly view of one block.
type blockDTO struct {
	FirstAppearance string     `json:"first_appearance,omitempty"`
	LastAppearance  string     `json:"last_appearance,omitempty"`
	Issues          []issueDTO `json:"issues"`
}

// courseResponse is the JSON view of the whole editing session.
type courseResponse struct {
	Blank            bool       `json:"blank"`
	YearName         string     `json:"year_name,omitempty"`
	YearStartMonth   int        `json:"year_start_month"`
	YearStartDay     int        `json:"year_start_day"`
	Granularity      string     `json:"granularity"`
	Year             int        `json:"year"`
	Blocks           []blockDTO `json:"blocks"`
	IndividualIssues int        `json:"individual_issues"`
	Processes        int        `json:"processes"`
	IssueColours     []string   `json:"issue_colours"`
}

func issueToDTO(issue *course.Issue) issueDTO {
	dto := issueDTO{Heading: issue.Heading(), Rule: issue.Rule()}
	for _, d := range issue.Additions() {
		dto.Additions = append(dto.Additions, course.FormatDate(d))
	}
	for _, d := range issue.Exclusions() {
		dto.Exclusions = append(dto.Exclusions, course.FormatDate(d))
	}
	return dto
}

func (s *Server) handleCourse(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	c := s.editor.Course()
	resp := courseResponse{
		Blank:            s.editor.Blank(),
		YearName:         c.YearName(),
		YearStartMonth:   int(c.YearStart().Month),
		YearStartDay:     c.YearStart().Day,
		Granularity:      string(s.editor.Granularity()),
		Year:             s.editor.Year(),
		Blocks:           []blockDTO{},
		IndividualIssues: c.CountIndividualIssues(),
		Processes:        c.NumberOfProcesses(),
		IssueColours:     s.cfg.IssueColours,
	}
	for _, b := range c.Blocks() {
		bd := blockDTO{Issues: []issueDTO{}}
		if !b.FirstAppearance().IsZero() {
			bd.FirstAppearance = course.FormatDate(b.FirstAppearance())
		}
		if !b.LastAppearance().IsZero() {
			bd.LastAppearance = course.FormatDate(b.LastAppearance())
		}
		for _, issue := range b.Issues() {
			bd.Issues = append(bd.Issues, issueToDTO(issue))
		}
		resp.Blocks = append(resp.Blocks, bd)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.editorMu.Lock()
	data, messages, err := s.editor.Download()
	s.editorMu.Unlock()
	if err != nil {
		applog.Error("course download failed", err)
		writeJSON(w, http.StatusConflict, commandResponse{Messages: s.renderMessages(messages)})
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="newspaper.xml"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		applog.Error("course upload read failed", err)
		messages := []msg.Message{msg.Error(msg.KeyUploadError, err.Error())}
		writeJSON(w, http.StatusBadRequest, commandResponse{Messages: s.renderMessages(messages)})
		return
	}

	s.editorMu.Lock()
	messages, err := s.editor.Upload(data)
	s.editorMu.Unlock()
	if err != nil {
		applog.Error("course upload rejected", err)
		writeJSON(w, http.StatusUnprocessableEntity, commandResponse{Messages: s.renderMessages(messages)})
		return
	}
	writeJSON(w, http.StatusOK, commandResponse{Messages: s.renderMessages(messages)})
}

// cellDTO is a JSON-friendly view of one calendar sheet slot.
type cellDTO struct {
	Date    string   `json:"date,omitempty"`
	OnBlock bool     `json:"on_block"`
	Issues  []string `json:"issues,omitempty"`
}

type sheetResponse struct {
	Year  int             `json:"year"`
	Cells [31][12]cellDTO `json:"cells"`
}

func (s *Server) handleSheet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	if yearParam := r.URL.Query().Get("year"); yearParam != "" {
		year, err := strconv.Atoi(yearParam)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid year")
			return
		}
		s.editor.SetYear(year)
	}

	sheet := s.editor.Sheet()
	resp := sheetResponse{Year: s.editor.Year()}
	for day := 0; day < 31; day++ {
		for month := 0; month < 12; month++ {
			cell := sheet[day][month]
			dto := cellDTO{OnBlock: cell.OnBlock}
			if !cell.Date.IsZero() {
				dto.Date = course.FormatDate(cell.Date)
			}
			for _, issue := range cell.Issues {
				if issue.Match(cell.Date) {
					dto.Issues = append(dto.Issues, issue.Heading())
				}
			}
			resp.Cells[day][month] = dto
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	g, err := course.ParseGranularity(r.URL.Query().Get("granularity"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.editorMu.Lock()
	s.editor.SetGranularity(g)
	processes := s.editor.Course().NumberOfProcesses()
	s.editorMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"granularity": string(g),
		"processes":   processes,
	})
}

type metaRequest struct {
	YearName       *string `json:"year_name"`
	YearStartMonth *int    `json:"year_start_month"`
	YearStartDay   *int    `json:"year_start_day"`
}

func (s *Server) handleMeta(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req metaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	if req.YearName != nil {
		s.editor.SetYearName(*req.YearName)
	}
	if req.YearStartMonth != nil && req.YearStartDay != nil {
		month := *req.YearStartMonth
		day := *req.YearStartDay
		if month < 1 || month > 12 || day < 1 || day > 31 {
			writeError(w, http.StatusBadRequest, "year start out of range")
			return
		}
		s.editor.SetYearStart(course.MonthDay{Month: time.Month(month), Day: day})
	}
	s.writeCommandResult(w, nil, nil)
}

type blockRequest struct {
	Action string `json:"action"` // "add", "copy", "remove"
	Index  int    `json:"index"`
}

func (s *Server) handleBlocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	switch req.Action {
	case "add":
		index := s.editor.AddBlock()
		writeJSON(w, http.StatusOK, map[string]int{"index": index})
	case "copy":
		index, err := s.editor.CopyBlock(req.Index)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"index": index})
	case "remove":
		if err := s.editor.RemoveBlock(req.Index); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.writeCommandResult(w, nil, nil)
	default:
		writeError(w, http.StatusBadRequest, "unknown block action")
	}
}

type blockDatesRequest struct {
	Index int    `json:"index"`
	Field string `json:"field"` // "firstAppearance" or "lastAppearance"
	Value string `json:"value"`
}

func (s *Server) handleBlockDates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req blockDatesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	var messages []msg.Message
	var err error
	switch req.Field {
	case msg.FieldFirstAppearance:
		messages, err = s.editor.SetFirstAppearance(req.Index, req.Value)
	case msg.FieldLastAppearance:
		messages, err = s.editor.SetLastAppearance(req.Index, req.Value)
	default:
		writeError(w, http.StatusBadRequest, "unknown date field")
		return
	}
	s.writeCommandResult(w, messages, err)
}

type issueRequest struct {
	Action  string `json:"action"` // "add", "remove"
	Block   int    `json:"block"`
	Issue   int    `json:"issue"`
	Heading string `json:"heading"`
	Rule    string `json:"rule"`
}

func (s *Server) handleIssues(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	switch req.Action {
	case "add":
		if err := s.editor.AddIssue(req.Block, req.Heading, req.Rule); err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	case "remove":
		if err := s.editor.RemoveIssue(req.Block, req.Issue); err != nil {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
	default:
		writeError(w, http.StatusBadRequest, "unknown issue action")
		return
	}
	s.writeCommandResult(w, nil, nil)
}

type issueToggleRequest struct {
	Block int    `json:"block"`
	Issue int    `json:"issue"`
	Date  string `json:"date"`
}

func (s *Server) handleIssueToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req issueToggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	date, err := course.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date")
		return
	}

	s.editorMu.Lock()
	defer s.editorMu.Unlock()

	if err := s.editor.ToggleIssueMatch(req.Block, req.Issue, date); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.writeCommandResult(w, nil, nil)
}

func (s *Server) handleCourseICS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	s.editorMu.Lock()
	snapshot := s.editor.Snapshot()
	name := s.editor.Course().YearName()
	s.editorMu.Unlock()

	data := ics.ExportCourse(snapshot, name)
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

type generateRequest struct {
	Target      string `json:"target"`
	Granularity string `json:"granularity"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Target == "" {
		writeError(w, http.StatusBadRequest, "target is required")
		return
	}

	granularity := course.Granularity("")
	if req.Granularity != "" {
		g, err := course.ParseGranularity(req.Granularity)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		granularity = g
	}

	s.editorMu.Lock()
	snapshot := s.editor.Snapshot()
	if granularity == "" {
		granularity = s.editor.Granularity()
	}
	s.editorMu.Unlock()

	jobID, err := s.manager.Submit(req.Target, snapshot, granularity)
	if err != nil {
		if errors.Is(err, generator.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) handleGenerateJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		state, ok := s.manager.Status(id)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown job")
			return
		}
		writeJSON(w, http.StatusOK, state)
		return
	}
	writeJSON(w, http.StatusOK, s.manager.States())
}

type processDTO struct {
	ID           string `json:"id"`
	GenerationID string `json:"generation_id"`
	Title        string `json:"title"`
	FirstDate    string `json:"first_date"`
	LastDate     string `json:"last_date"`
	IssueCount   int    `json:"issue_count"`
}

func (s *Server) handleProcesses(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	processes, err := s.store.ListProcesses(r.Context(), r.URL.Query().Get("generation"))
	if err != nil {
		applog.Error("listing processes failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list processes")
		return
	}

	out := make([]processDTO, 0, len(processes))
	for _, p := range processes {
		out = append(out, processDTO{
			ID:           p.ID,
			GenerationID: p.GenerationID,
			Title:        p.Title,
			FirstDate:    course.FormatDate(p.FirstDate),
			LastDate:     course.FormatDate(p.LastDate),
			IssueCount:   p.IssueCount,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		applog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: message})
}
