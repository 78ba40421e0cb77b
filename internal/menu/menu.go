// Package menu runs the numbered publication filter menu over a line-based
// reader and writer.
package menu

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/JonMunkholm/pubsum/internal/catalog"
	"github.com/JonMunkholm/pubsum/internal/logging"
)

const (
	title      = "Publication Summary Generator - Filter Menu"
	prompt     = "Enter your choice (1-%d): "
	invalidMsg = "Invalid choice. Please enter a number between 1 and %d."
	exitMsg    = "Exiting the program."
)

// Catalog is the set of catalog operations the menu drives.
// Satisfied by *catalog.Catalog.
type Catalog interface {
	FilterByTitle(keyword string) (*catalog.Table, error)
	FilterByAuthor(name string) (*catalog.Table, error)
	FilterByYearRange(startYear, endYear int64) (*catalog.Table, error)
	FilterByType(keyword string) (*catalog.Table, error)
	YearlySummary() (*catalog.Table, error)
	TotalSummary() (*catalog.Table, error)
	OutputPath(target catalog.ExportTarget) string
}

// item is one numbered menu entry. An item without an action exits.
type item struct {
	label  string
	action func(m *Menu, ctx context.Context) error
}

// Menu is an interactive session over a catalog.
type Menu struct {
	cat    Catalog
	in     *bufio.Scanner
	lines  <-chan inputLine
	out    io.Writer
	logger *slog.Logger
	items  []item
}

// New creates a menu reading choices from in and writing to out.
func New(cat Catalog, in io.Reader, out io.Writer, logger *slog.Logger) *Menu {
	if logger == nil {
		logger = slog.Default()
	}
	return &Menu{
		cat:    cat,
		in:     bufio.NewScanner(in),
		out:    out,
		logger: logger,
		items: []item{
			{label: "Filter by Title", action: (*Menu).filterByTitle},
			{label: "Filter by Author", action: (*Menu).filterByAuthor},
			{label: "Filter by Year Range", action: (*Menu).filterByYearRange},
			{label: "Filter by Type", action: (*Menu).filterByType},
			{label: "Generate Yearly Summary", action: (*Menu).yearlySummary},
			{label: "Generate Total Summary", action: (*Menu).totalSummary},
			{label: "Exit"},
		},
	}
}

// errReadInput marks failures reading from the input stream. They end the
// session; every other action error is printed and the menu continues.
var errReadInput = errors.New("read input")

// Run shows the menu until the user exits, input ends or ctx is cancelled.
// Cancelling ctx while a prompt waits for input ends the session like the
// Exit choice. Catalog and input errors are printed and the menu continues.
// Only a failure to read input is returned.
func (m *Menu) Run(ctx context.Context) error {
	m.logger, _ = logging.NewSession(m.logger)
	m.logger.Info("menu session started")
	defer m.logger.Info("menu session ended")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	m.lines = m.scanLines(ctx)

	for {
		if ctx.Err() != nil {
			return m.interrupted(ctx)
		}

		m.display()
		choice, err := m.readLine(ctx, fmt.Sprintf(prompt, len(m.items)))
		if errors.Is(err, io.EOF) {
			m.println(exitMsg)
			return nil
		}
		if ctx.Err() != nil {
			return m.interrupted(ctx)
		}
		if err != nil {
			return err
		}

		n, convErr := strconv.Atoi(strings.TrimSpace(choice))
		if convErr != nil || n < 1 || n > len(m.items) {
			m.printf(invalidMsg+"\n", len(m.items))
			continue
		}

		it := m.items[n-1]
		if it.action == nil {
			m.println(exitMsg)
			return nil
		}

		m.logger.Debug("menu choice", "choice", n, "label", it.label)
		if err := it.action(m, ctx); err != nil {
			if errors.Is(err, io.EOF) {
				m.println(exitMsg)
				return nil
			}
			if ctx.Err() != nil {
				return m.interrupted(ctx)
			}
			if errors.Is(err, errReadInput) {
				return err
			}
			m.logger.Warn("menu action failed", "choice", n, "error", err)
			m.println("Error: " + catalog.FormatUserError(err))
		}
	}
}

func (m *Menu) display() {
	m.println("")
	m.println(title)
	for i, it := range m.items {
		m.printf("%d. %s\n", i+1, it.label)
	}
}

// interrupted ends a session whose ctx was cancelled.
func (m *Menu) interrupted(ctx context.Context) error {
	m.logger.Info("menu interrupted", "reason", ctx.Err())
	m.println("")
	m.println(exitMsg)
	return nil
}

// inputLine is one line of input, or the error that ended the input.
type inputLine struct {
	text string
	err  error
}

// scanLines reads input lines on its own goroutine so a prompt can stop
// waiting when ctx is done. The last value sent carries io.EOF or the read
// error. The goroutine exits once ctx is done and its pending read returns.
func (m *Menu) scanLines(ctx context.Context) <-chan inputLine {
	lines := make(chan inputLine)
	send := func(l inputLine) bool {
		select {
		case lines <- l:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(lines)
		for m.in.Scan() {
			if !send(inputLine{text: strings.TrimRight(m.in.Text(), "\r")}) {
				return
			}
		}
		err := io.EOF
		if scanErr := m.in.Err(); scanErr != nil {
			err = fmt.Errorf("%w: %w", errReadInput, scanErr)
		}
		send(inputLine{err: err})
	}()
	return lines
}

// readLine prompts and returns the next input line without its newline.
// It returns io.EOF once input is exhausted and ctx.Err() once ctx is done.
func (m *Menu) readLine(ctx context.Context, p string) (string, error) {
	fmt.Fprint(m.out, p)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l, ok := <-m.lines:
		if !ok {
			return "", io.EOF
		}
		// A line and a cancellation can arrive together; cancellation wins.
		if err := ctx.Err(); err != nil {
			return "", err
		}
		return l.text, l.err
	}
}

func (m *Menu) filterByTitle(ctx context.Context) error {
	keyword, err := m.readLine(ctx, "Enter the title keyword to filter by: ")
	if err != nil {
		return err
	}
	return m.report(catalog.TitleExport, keyword)(m.cat.FilterByTitle(keyword))
}

func (m *Menu) filterByAuthor(ctx context.Context) error {
	name, err := m.readLine(ctx, "Enter the author name to filter by: ")
	if err != nil {
		return err
	}
	return m.report(catalog.AuthorExport, name)(m.cat.FilterByAuthor(name))
}

func (m *Menu) filterByYearRange(ctx context.Context) error {
	start, err := m.readYear(ctx, "Enter start year: ")
	if err != nil {
		return err
	}
	end, err := m.readYear(ctx, "Enter end year: ")
	if err != nil {
		return err
	}
	return m.report(catalog.YearRangeExport, fmt.Sprintf("%d-%d", start, end))(m.cat.FilterByYearRange(start, end))
}

func (m *Menu) filterByType(ctx context.Context) error {
	keyword, err := m.readLine(ctx, "Enter the type of publication (journal or conference): ")
	if err != nil {
		return err
	}
	return m.report(catalog.TypeExport, keyword)(m.cat.FilterByType(keyword))
}

func (m *Menu) yearlySummary(context.Context) error {
	t, err := m.cat.YearlySummary()
	if err != nil {
		return err
	}
	m.println("Yearly Summary:")
	renderTable(m.out, t)
	return nil
}

func (m *Menu) totalSummary(context.Context) error {
	t, err := m.cat.TotalSummary()
	if err != nil {
		return err
	}
	m.println("Total Summary:")
	renderTable(m.out, t)
	return nil
}

// readYear prompts for a whole-number year.
func (m *Menu) readYear(ctx context.Context, p string) (int64, error) {
	line, err := m.readLine(ctx, p)
	if err != nil {
		return 0, err
	}
	year, err := strconv.ParseInt(strings.TrimSpace(line), 10, 64)
	if err != nil {
		return 0, &inputError{value: line}
	}
	return year, nil
}

// report returns a function printing a filter result and its export path.
func (m *Menu) report(target catalog.ExportTarget, query string) func(*catalog.Table, error) error {
	return func(t *catalog.Table, err error) error {
		if err != nil {
			return err
		}
		path := m.cat.OutputPath(target)
		m.logger.Info("filter exported", "query", query, "matched", t.Len(), "path", path)
		m.printf("Found %d matching publication(s). Excel file saved to %s\n", t.Len(), path)
		return nil
	}
}

func (m *Menu) println(s string) {
	fmt.Fprintln(m.out, s)
}

func (m *Menu) printf(format string, args ...any) {
	fmt.Fprintf(m.out, format, args...)
}

// inputError is a value the user typed that could not be parsed.
type inputError struct {
	value string
}

func (e *inputError) Error() string {
	return fmt.Sprintf("invalid input: %q is not a whole number", e.value)
}

// renderTable prints t with a header row. Nil cells render empty.
func renderTable(w io.Writer, t *catalog.Table) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(t.Columns())
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	for i := 0; i < t.Len(); i++ {
		values := t.Values(i)
		row := make([]string, len(values))
		for j, v := range values {
			row[j] = catalog.FormatValue(v)
		}
		table.Append(row)
	}
	table.Render()
}
