package web

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/logging"
	"github.com/JonMunkholm/pubsum/internal/store"
	"github.com/JonMunkholm/pubsum/internal/xlsx"
)

const (
	defaultExportsLimit = 20
	maxExportsLimit     = 200

	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// handleHealth reports that the server is up.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, map[string]string{"status": "ok"})
}

// handleListPublications returns the loaded source table.
func (s *Server) handleListPublications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, s.catalog.Source())
}

// handleTextFilter runs a keyword filter with the q query parameter.
func (s *Server) handleTextFilter(filter func(string) (*catalog.Table, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query().Get("q")

		out, err := filter(q)
		if err != nil {
			respondError(w, r, err, 0)
			return
		}

		logging.WithFields(r.Context(), "path", r.URL.Path, "q", q, "matched", out.Len()).Debug("filter applied")
		writeJSON(w, r, out)
	}
}

// handleYearFilter runs the inclusive year range filter over start and end.
func (s *Server) handleYearFilter(w http.ResponseWriter, r *http.Request) {
	start, err := parseYearParam(r, "start")
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}
	end, err := parseYearParam(r, "end")
	if err != nil {
		respondError(w, r, err, http.StatusBadRequest)
		return
	}

	out, err := s.catalog.FilterByYearRange(start, end)
	if err != nil {
		respondError(w, r, err, 0)
		return
	}
	writeJSON(w, r, out)
}

// handleSummary returns a summary table as JSON.
func (s *Server) handleSummary(summarize func() (*catalog.Table, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := summarize()
		if err != nil {
			respondError(w, r, err, 0)
			return
		}
		writeJSON(w, r, out)
	}
}

// handleSummaryDownload returns a summary table as an .xlsx attachment.
// The workbook is built in memory so a failure still yields a JSON error.
func (s *Server) handleSummaryDownload(filename string, summarize func() (*catalog.Table, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := summarize()
		if err != nil {
			respondError(w, r, err, 0)
			return
		}

		var buf bytes.Buffer
		if err := xlsx.Encode(&buf, catalog.DefaultSheetName, out); err != nil {
			respondError(w, r, &catalog.FileWriteError{Path: filename, Err: err}, http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
		w.Write(buf.Bytes())
	}
}

// handleListExports returns the most recent archived exports.
func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		respondErrorJSON(w, msgArchiveDisabled, http.StatusNotFound)
		return
	}

	limit := parseIntParam(r, "limit", defaultExportsLimit)
	if limit > maxExportsLimit {
		limit = maxExportsLimit
	}

	runs, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, r, runs)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parseYearParam parses a required whole-number year query parameter.
func parseYearParam(r *http.Request, name string) (int64, error) {
	val := strings.TrimSpace(r.URL.Query().Get(name))
	year, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid input: %s year %q is not a whole number", name, val)
	}
	return year, nil
}
