package repository

import (
	"sort"

	"github.com/straye-as/sheet-ledger/internal/tablestore"
)

// Sequence entities stored in TableSequences
const (
	seqStock       = "stock"
	seqOrder       = "order"
	seqPart        = "part"
	seqReservation = "reservation"
	seqWriteOff    = "writeoff"
)

type sequence struct {
	entity string
	last   int
}

func decodeSequence(rec tablestore.Record) (sequence, error) {
	r := fieldReader{rec: rec}
	return sequence{entity: r.str("entity"), last: r.int("last")}, r.err
}

func (s *Session) encodeSequences() *tablestore.Table {
	entities := make([]string, 0, len(s.seq))
	for e := range s.seq {
		entities = append(entities, e)
	}
	sort.Strings(entities)

	t := tablestore.NewTable(sequenceColumns...)
	for _, e := range entities {
		t.Append(tablestore.Record{"entity": e, "last": formatInt(s.seq[e])})
	}
	return t
}

// nextID allocates the id after the larger of the entity's high-water mark
// and inUse. An allocated id is never handed out again, even once the row
// holding it is deleted and only dangling references remain.
func (s *Session) nextID(entity string, inUse int) int {
	id := s.seq[entity]
	if inUse > id {
		id = inUse
	}
	id++
	s.seq[entity] = id
	s.Touch(TableSequences)
	return id
}
