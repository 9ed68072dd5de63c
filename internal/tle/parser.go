package tle

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// Parse reads NORAD TLE text from r and returns parsed entries. Both the
// 3-line catalog format (name line followed by the two element lines) and
// bare 2-line sets are accepted; bare sets get an empty name. Malformed
// entries are skipped with a warning log.
func Parse(r io.Reader, logger *slog.Logger) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	var lines []string
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r\n ")
		if line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading TLE data: %w", err)
	}

	var entries []Entry
	for i := 0; i < len(lines); {
		name := ""
		l1Idx := i

		// A name line is anything that is not an element line.
		if !strings.HasPrefix(lines[i], "1 ") {
			name = lines[i]
			l1Idx = i + 1
		}

		if l1Idx+1 >= len(lines) {
			if name != "" || !strings.HasPrefix(lines[i], "1 ") {
				logger.Warn("skipping trailing TLE fragment", "line_index", i)
			}
			break
		}

		line1 := lines[l1Idx]
		line2 := lines[l1Idx+1]

		if !strings.HasPrefix(line1, "1 ") || !strings.HasPrefix(line2, "2 ") {
			// Resync on the next line.
			logger.Warn("skipping malformed TLE entry", "line_index", i, "name", name)
			i++
			continue
		}

		entry, err := parseElementLines(name, line1, line2)
		if err != nil {
			logger.Warn("skipping invalid TLE entry", "name", name, "error", err)
			i = l1Idx + 2
			continue
		}

		entries = append(entries, entry)
		i = l1Idx + 2
	}

	return entries, nil
}

// ParseSingle parses one user-supplied element set. Unlike Parse it returns
// an error instead of skipping, so the caller can surface the exact problem.
func ParseSingle(name, line1, line2 string) (Entry, error) {
	line1 = strings.TrimRight(line1, "\r\n ")
	line2 = strings.TrimRight(line2, "\r\n ")

	if !strings.HasPrefix(line1, "1 ") {
		return Entry{}, fmt.Errorf("line 1 must start with %q", "1 ")
	}
	if !strings.HasPrefix(line2, "2 ") {
		return Entry{}, fmt.Errorf("line 2 must start with %q", "2 ")
	}
	return parseElementLines(name, line1, line2)
}

// parseElementLines extracts the catalog number and epoch from an element pair.
func parseElementLines(name, line1, line2 string) (Entry, error) {
	if len(line1) < 32 {
		return Entry{}, fmt.Errorf("line 1 too short: %d chars", len(line1))
	}

	// NORAD ID from line1 cols 3-7 (0-indexed: 2..7).
	noradStr := strings.TrimSpace(line1[2:7])
	noradID, err := strconv.Atoi(noradStr)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid catalog number %q", noradStr)
	}

	// Epoch from line1 cols 19-32 (0-indexed: 18..32).
	epochStr := strings.TrimSpace(line1[18:32])
	epoch, err := parseEpoch(epochStr)
	if err != nil {
		return Entry{}, fmt.Errorf("invalid epoch %q: %w", epochStr, err)
	}

	return Entry{
		NORADID: noradID,
		Name:    strings.TrimSpace(name),
		Epoch:   epoch,
		Line1:   line1,
		Line2:   line2,
	}, nil
}

// parseEpoch converts a TLE epoch string in YYDDD.DDDDDDDD format to time.Time.
// Year 00-56 → 2000s, 57-99 → 1900s.
func parseEpoch(s string) (time.Time, error) {
	if len(s) < 5 {
		return time.Time{}, fmt.Errorf("epoch string too short: %q", s)
	}

	yearStr := s[:2]
	dayStr := s[2:]

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch year %q: %w", yearStr, err)
	}

	if year >= 57 {
		year += 1900
	} else {
		year += 2000
	}

	dayOfYear, err := strconv.ParseFloat(dayStr, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid epoch day %q: %w", dayStr, err)
	}

	// Start of the year, then add fractional days. Day 1 = Jan 1.
	t := time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
	t = t.Add(time.Duration((dayOfYear - 1) * float64(24*time.Hour)))

	return t, nil
}
