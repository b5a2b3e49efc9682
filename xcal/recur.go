// Package xcal encodes recurrence rules as the <recur> element of the XML
// iCalendar representation (RFC 6321).
package xcal

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/cyp0633/librecur/icaltime"
	"github.com/cyp0633/librecur/recur"
)

// Namespace is the xCal namespace.
const Namespace = "urn:ietf:params:xml:ns:icalendar-2.0"

// byParts lists the BY-parts in the order RFC 6321 requires.
var byParts = []recur.Part{
	recur.BySecond, recur.ByMinute, recur.ByHour, recur.ByDay, recur.ByMonthDay,
	recur.ByYearDay, recur.ByWeekNo, recur.ByMonth, recur.BySetPos,
}

// EncodeRecur builds a <recur> element for r.
func EncodeRecur(r *recur.Recur) *etree.Element {
	p := r.Parts()
	elem := etree.NewElement("recur")
	elem.CreateElement("freq").SetText(p.Freq)
	if p.Until != nil {
		elem.CreateElement("until").SetText(p.Until.String())
	}
	if p.Count != nil {
		elem.CreateElement("count").SetText(strconv.Itoa(*p.Count))
	}
	if p.Interval > 1 {
		elem.CreateElement("interval").SetText(strconv.Itoa(p.Interval))
	}
	for _, part := range byParts {
		for _, v := range p.Parts[string(part)] {
			elem.CreateElement(strings.ToLower(string(part))).SetText(v)
		}
	}
	if p.WeekStart != "" && p.WeekStart != icaltime.DefaultWeekStart.String() {
		elem.CreateElement("wkst").SetText(p.WeekStart)
	}
	return elem
}

// DecodeRecur reads a <recur> element. Unknown x- children are skipped.
func DecodeRecur(elem *etree.Element) (*recur.Recur, error) {
	if elem == nil || elem.Tag != "recur" {
		return nil, fmt.Errorf("expected recur element")
	}
	p := recur.RuleParts{Parts: map[string][]string{}}
	for _, child := range elem.ChildElements() {
		value := strings.TrimSpace(child.Text())
		switch name := strings.ToLower(child.Tag); name {
		case "freq":
			p.Freq = value
		case "until":
			until, err := icaltime.FromString(value)
			if err != nil {
				return nil, fmt.Errorf("invalid until: %w", err)
			}
			p.Until = &until
		case "count":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid count %q: %w", value, err)
			}
			p.Count = &n
		case "interval":
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid interval %q: %w", value, err)
			}
			p.Interval = n
		case "wkst":
			p.WeekStart = value
		default:
			if strings.HasPrefix(name, "x-") {
				continue
			}
			if !strings.HasPrefix(name, "by") {
				return nil, fmt.Errorf("unknown recur element %q", child.Tag)
			}
			key := strings.ToUpper(name)
			p.Parts[key] = append(p.Parts[key], value)
		}
	}
	return recur.NewRecur(p)
}

// MarshalRecur renders r as a standalone XML document.
func MarshalRecur(r *recur.Recur) (string, error) {
	doc := etree.NewDocument()
	root := EncodeRecur(r)
	root.CreateAttr("xmlns", Namespace)
	doc.SetRoot(root)
	doc.Indent(2)
	return doc.WriteToString()
}

// UnmarshalRecur parses a document whose root is a <recur> element.
func UnmarshalRecur(xmlStr string) (*recur.Recur, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlStr); err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return DecodeRecur(doc.Root())
}
