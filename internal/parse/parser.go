package parse

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dcallies/voucher-sync/internal/models"
)

// ParseError indicates the pattern rules could not produce a complete
// voucher. Partial carries whatever fields were extracted before the
// failure, for manual review.
type ParseError struct {
	Reason  string
	Partial map[string]string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failed: %s", e.Reason)
}

var (
	// Hours patterns tried in order; the first match wins.
	unitsPattern  = regexp.MustCompile(`(?i)units\s+of\s+service\s+(\d+(?:\.\d+)?)\s*@`)
	hoursPattern  = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*hours?\b`)
	dollarPattern = regexp.MustCompile(`\$\s*(\d{1,3}(?:,\d{3})*(?:\.\d{1,2})?)`)

	// Calendar dates in MM/DD/YYYY (month-first) or YYYY-MM-DD form.
	datePattern = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b|\b(\d{4})-(\d{2})-(\d{2})\b`)
)

// excerptWindow bounds the raw-text excerpt stored with each voucher.
const excerptWindow = 80

// Parser applies pattern rules to raw OCR text and produces a voucher.
// Rate is a pipeline-wide constant used to compute or validate the amount;
// it is never inferred per-document.
type Parser struct {
	rate            float64
	fallbackAmounts []float64
	logger          *zap.Logger
}

// NewParser creates a field parser with the configured hourly rate and the
// historical-totals table for the amount fallback heuristic.
func NewParser(rate float64, fallbackAmounts []float64, logger *zap.Logger) *Parser {
	return &Parser{
		rate:            rate,
		fallbackAmounts: fallbackAmounts,
		logger:          logger,
	}
}

// Parse extracts a voucher from raw text. Each step is independently
// fallible; on failure a ParseError carries the fields gathered so far.
func (p *Parser) Parse(text string) (*models.Voucher, error) {
	partial := make(map[string]string)

	// Voucher number is the anchor: no number, no record.
	loc := models.VoucherNumberPattern.FindStringIndex(text)
	if loc == nil {
		return nil, &ParseError{Reason: "no voucher number found", Partial: partial}
	}
	number := text[loc[0]:loc[1]]
	partial["voucher_number"] = number

	v := &models.Voucher{
		VoucherNumber:  number,
		Rate:           p.rate,
		Status:         models.StatusParsed,
		RawTextExcerpt: excerpt(text, loc[0], loc[1]),
	}

	// The client code is the 3-letter segment of the voucher number, never
	// searched for separately in the text. OCR noise elsewhere in the
	// document cannot corrupt it.
	v.ClientCode = number[6:9]
	partial["client_code"] = v.ClientCode

	start, end, err := p.parseDateRange(text)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Partial: partial}
	}
	v.ServiceStartDate = start
	v.ServiceEndDate = end
	partial["service_start_date"] = start.Format("2006-01-02")
	partial["service_end_date"] = end.Format("2006-01-02")

	hours, inferred, err := p.parseHours(text)
	if err != nil {
		return nil, &ParseError{Reason: err.Error(), Partial: partial}
	}
	v.Hours = hours
	v.ComputeAmount()
	if inferred {
		// The amount came from the historical-totals heuristic, not from a
		// matched hours pattern. Route to manual review instead of trusting
		// the guess.
		v.Status = models.StatusNeedsReview
		p.logger.Warn("Amount inferred from historical totals, flagging for review",
			zap.String("voucher_number", v.VoucherNumber),
			zap.Float64("amount", v.Amount))
	}

	// Invoice date is always derived from the service end date. A literal
	// invoice date printed in the document is ignored.
	v.ComputeInvoiceDate()

	return v, nil
}

// parseDateRange finds the service period. The first two parseable calendar
// dates in document order define the range; the earlier one is the start.
func (p *Parser) parseDateRange(text string) (start, end time.Time, err error) {
	matches := datePattern.FindAllStringSubmatch(text, -1)

	var dates []time.Time
	for _, m := range matches {
		d, ok := parseDate(m)
		if !ok {
			continue
		}
		dates = append(dates, d)
		if len(dates) == 2 {
			break
		}
	}

	switch len(dates) {
	case 0:
		return time.Time{}, time.Time{}, fmt.Errorf("no service dates found")
	case 1:
		return time.Time{}, time.Time{}, fmt.Errorf("only one service date found, need a range")
	}

	start, end = dates[0], dates[1]
	if end.Before(start) {
		start, end = end, start
	}
	return start, end, nil
}

// parseDate converts one datePattern submatch into a UTC date. Returns
// false for matches that are not real calendar dates (e.g. 13/45/2025).
func parseDate(m []string) (time.Time, bool) {
	var year, month, day int
	if m[1] != "" {
		month, _ = strconv.Atoi(m[1])
		day, _ = strconv.Atoi(m[2])
		year, _ = strconv.Atoi(m[3])
	} else {
		year, _ = strconv.Atoi(m[4])
		month, _ = strconv.Atoi(m[5])
		day, _ = strconv.Atoi(m[6])
	}

	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject normalized rollovers such as 02/30.
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

// parseHours extracts the billed hours. The primary patterns are
// "Units of Service <N>@" and "<N> hours"; when neither matches, the
// fallback heuristic matches literal dollar amounts against the table of
// historically common totals and back-computes hours. inferred reports
// whether the fallback was used.
func (p *Parser) parseHours(text string) (hours float64, inferred bool, err error) {
	for _, pattern := range []*regexp.Regexp{unitsPattern, hoursPattern} {
		if m := pattern.FindStringSubmatch(text); len(m) > 1 {
			h, perr := strconv.ParseFloat(m[1], 64)
			if perr != nil || h <= 0 {
				continue
			}
			return h, false, nil
		}
	}

	amount, err := p.inferAmount(text)
	if err != nil {
		return 0, false, err
	}
	return models.Round2(amount / p.rate), true, nil
}

// inferAmount scans literal dollar amounts for exactly one value from the
// historical-totals table. Zero or multiple candidates fail the parse
// rather than guessing.
func (p *Parser) inferAmount(text string) (float64, error) {
	matches := dollarPattern.FindAllStringSubmatch(text, -1)

	candidates := make(map[float64]bool)
	for _, m := range matches {
		raw := strings.ReplaceAll(m[1], ",", "")
		val, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			continue
		}
		for _, known := range p.fallbackAmounts {
			if math.Abs(val-known) < 0.005 {
				candidates[known] = true
			}
		}
	}

	switch len(candidates) {
	case 0:
		return 0, fmt.Errorf("no hours pattern and no known dollar amount found")
	case 1:
		for amount := range candidates {
			return amount, nil
		}
	}
	return 0, fmt.Errorf("no hours pattern and %d known dollar amounts matched, refusing to guess", len(candidates))
}

// excerpt returns a window of text around the matched voucher number.
func excerpt(text string, start, end int) string {
	lo := start - excerptWindow
	if lo < 0 {
		lo = 0
	}
	hi := end + excerptWindow
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}
