package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// frameProbe is decoded first to distinguish header/footer meta lines from
// record lines without committing to either shape.
type frameProbe struct {
	Meta bool   `json:"_meta"`
	Type string `json:"type"`
}

// Log is the parsed result of reading an audit file: its header, every
// record line in order, and its footer if the log is well-formed. Complete
// is false when no footer line was found — readers must tolerate this and
// treat the log as incomplete rather than erroring.
type Log struct {
	Header   *Header
	Records  []Record
	Footer   *Footer
	Complete bool
}

// ReadFile parses path per the audit log convention: a header frame, zero
// or more record lines, and an optional footer frame (spec §4.H/§4.I step 1).
func ReadFile(path string) (*Log, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// Read parses r line by line, skipping `_meta:true` frames into Header/Footer
// and yielding every other line as a Record.
func Read(r io.Reader) (*Log, error) {
	log := &Log{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe frameProbe
		if err := json.Unmarshal(line, &probe); err != nil {
			return log, fmt.Errorf("audit: line %d: %w", lineNo, err)
		}

		if probe.Meta && probe.Type == typeHeader {
			var h Header
			if err := json.Unmarshal(line, &h); err != nil {
				return log, fmt.Errorf("audit: header line %d: %w", lineNo, err)
			}
			log.Header = &h
			continue
		}
		if probe.Meta && probe.Type == typeFooter {
			var f Footer
			if err := json.Unmarshal(line, &f); err != nil {
				return log, fmt.Errorf("audit: footer line %d: %w", lineNo, err)
			}
			log.Footer = &f
			log.Complete = true
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return log, fmt.Errorf("audit: record line %d: %w", lineNo, err)
		}
		log.Records = append(log.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return log, err
	}
	return log, nil
}
