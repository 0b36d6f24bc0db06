package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Provenance is the link from a reconciled write-off back to its laser event.
// It lives only in the write-off comment.
type Provenance struct {
	Operator     string
	Part         string
	PartQuantity int
	HasQuantity  bool
	Timestamp    string
}

const (
	provenanceOperator = "Laser: "
	provenancePart     = "Part: "
	provenanceQuantity = "Qty: "
	provenanceEvent    = "Event: "
)

// legacyProvenance matches comments written by the original workbook tool
var legacyProvenance = regexp.MustCompile(`^Лазер: (.*?) \| Деталь: (.*?) \| Дата импорта: (.*)$`)

// String renders the comment stored on the write-off
func (p Provenance) String() string {
	return fmt.Sprintf("%s%s | %s%s | %s%d | %s%s",
		provenanceOperator, p.Operator,
		provenancePart, p.Part,
		provenanceQuantity, p.PartQuantity,
		provenanceEvent, p.Timestamp,
	)
}

// ParseProvenance extracts provenance from a write-off comment.
// The boolean is false for manual write-offs.
func ParseProvenance(comment string) (Provenance, bool) {
	comment = strings.TrimSpace(comment)
	if m := legacyProvenance.FindStringSubmatch(comment); m != nil {
		return Provenance{Operator: m[1], Part: m[2], Timestamp: strings.TrimSpace(m[3])}, true
	}
	if !strings.HasPrefix(comment, provenanceOperator) {
		return Provenance{}, false
	}

	var p Provenance
	seenEvent := false
	for _, field := range strings.Split(comment, " | ") {
		switch {
		case strings.HasPrefix(field, provenanceOperator):
			p.Operator = strings.TrimPrefix(field, provenanceOperator)
		case strings.HasPrefix(field, provenancePart):
			p.Part = strings.TrimPrefix(field, provenancePart)
		case strings.HasPrefix(field, provenanceQuantity):
			n, err := strconv.Atoi(strings.TrimPrefix(field, provenanceQuantity))
			if err == nil {
				p.PartQuantity = n
				p.HasQuantity = true
			}
		case strings.HasPrefix(field, provenanceEvent):
			p.Timestamp = strings.TrimPrefix(field, provenanceEvent)
			seenEvent = true
		}
	}
	return p, seenEvent
}
