// Package matching resolves free-text laser events to orders, parts and
// reservations.
package matching

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/straye-as/sheet-ledger/internal/domain"
	"github.com/straye-as/sheet-ledger/internal/repository"
)

// DefaultOrderTokenPattern extracts the numeric job code of "УП-123"
const DefaultOrderTokenPattern = `УП-(\d+)`

// DefaultTolerance is the allowed width/length difference in mm
const DefaultTolerance = 0.01

// Matcher is the strategy used by reconciliation
type Matcher interface {
	// MatchOrder finds the order an event belongs to
	MatchOrder(field string, orders []domain.Order) (*domain.Order, error)
	// ParseMaterial extracts grade and dimensions from a material string
	ParseMaterial(field string) (domain.MaterialDescriptor, error)
	// MatchPart finds the order part named by the event, or nil
	MatchPart(name string, parts []*domain.OrderPart) *domain.OrderPart
	// SelectReservation picks the reservation to write off from open candidates
	SelectReservation(material domain.MaterialDescriptor, part *domain.OrderPart, candidates []*domain.Reservation) (*domain.Reservation, error)
}

var dimensionsPattern = regexp.MustCompile(`^(\d+(?:[.,]\d+)?)[хxХX×*](\d+(?:[.,]\d+)?)[хxХX×*](\d+(?:[.,]\d+)?)`)

// Heuristic matches by token containment, case-insensitive substrings and a
// numeric tolerance on sheet dimensions.
type Heuristic struct {
	token     *regexp.Regexp
	tolerance float64
}

// NewHeuristic creates the heuristic matcher. An empty pattern or a
// non-positive tolerance selects the defaults.
func NewHeuristic(tokenPattern string, tolerance float64) (*Heuristic, error) {
	if tokenPattern == "" {
		tokenPattern = DefaultOrderTokenPattern
	}
	re, err := regexp.Compile(tokenPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid order token pattern: %w", err)
	}
	if re.NumSubexp() < 1 {
		return nil, fmt.Errorf("order token pattern %q needs a capture group", tokenPattern)
	}
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Heuristic{token: re, tolerance: tolerance}, nil
}

// MatchOrder tries the job code first, then the whole field as a substring of the order name
func (h *Heuristic) MatchOrder(field string, orders []domain.Order) (*domain.Order, error) {
	field = strings.TrimSpace(field)
	if field == "" {
		return nil, fmt.Errorf("%w: empty order field", domain.ErrOrderNotFound)
	}

	if m := h.token.FindStringSubmatch(field); m != nil && m[1] != "" {
		for i := range orders {
			if containsCode(orders[i].Name, m[1]) {
				return &orders[i], nil
			}
		}
	}

	needle := strings.ToLower(field)
	for i := range orders {
		if strings.Contains(strings.ToLower(orders[i].Name), needle) {
			return &orders[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrOrderNotFound, field)
}

// ParseMaterial scans whitespace tokens for NxNxN. Tokens before it form the
// grade; the numbers are thickness, width and length. A material without a
// grade is rejected.
func (h *Heuristic) ParseMaterial(field string) (domain.MaterialDescriptor, error) {
	tokens := strings.Fields(field)
	for i, tok := range tokens {
		m := dimensionsPattern.FindStringSubmatch(tok)
		if m == nil {
			continue
		}
		thickness, err1 := repository.ParseDecimal(m[1])
		width, err2 := repository.ParseDecimal(m[2])
		length, err3 := repository.ParseDecimal(m[3])
		if err1 != nil || err2 != nil || err3 != nil || i == 0 {
			break
		}
		return domain.MaterialDescriptor{
			Grade:     strings.Join(tokens[:i], " "),
			Thickness: thickness,
			Width:     width,
			Length:    length,
		}, nil
	}
	return domain.MaterialDescriptor{}, fmt.Errorf("%w: %q", domain.ErrUnparsableMaterial, field)
}

// MatchPart accepts either name containing the other
func (h *Heuristic) MatchPart(name string, parts []*domain.OrderPart) *domain.OrderPart {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return nil
	}
	for _, p := range parts {
		if containsEither(strings.ToLower(p.Name), needle) {
			return p
		}
	}
	return nil
}

// SelectReservation filters by material and prefers reservations linked to part
func (h *Heuristic) SelectReservation(material domain.MaterialDescriptor, part *domain.OrderPart, candidates []*domain.Reservation) (*domain.Reservation, error) {
	grade := strings.ToLower(strings.TrimSpace(material.Grade))

	var byMaterial []*domain.Reservation
	for _, r := range candidates {
		if r.Remaining <= 0 {
			continue
		}
		if !containsEither(strings.ToLower(r.Material.Grade), grade) {
			continue
		}
		if r.Material.Thickness != material.Thickness {
			continue
		}
		if !h.near(r.Material.Width, material.Width) || !h.near(r.Material.Length, material.Length) {
			continue
		}
		byMaterial = append(byMaterial, r)
	}
	if len(byMaterial) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoSuitableReservation, material)
	}

	if part != nil {
		for _, r := range byMaterial {
			if r.PartRef.Is(part.ID) {
				return r, nil
			}
		}
	}
	return byMaterial[0], nil
}

func (h *Heuristic) near(a, b float64) bool {
	return math.Abs(a-b) <= h.tolerance
}

// containsEither never matches an empty side
func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// containsCode reports whether code occurs in s with no digit directly
// before or after it, so "12" is not found in "123"
func containsCode(s, code string) bool {
	for from := 0; from < len(s); {
		i := strings.Index(s[from:], code)
		if i < 0 {
			return false
		}
		start := from + i
		end := start + len(code)
		if (start == 0 || !isDigit(s[start-1])) && (end == len(s) || !isDigit(s[end])) {
			return true
		}
		from = start + 1
	}
	return false
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}
