package queue

import (
	"sort"

	"github.com/google/uuid"
)

// CallOrder returns the eligible appointments in the order Call Next serves
// them: urgent before priority before normal, then ascending token.
func CallOrder(appts []*Appointment) []*Appointment {
	out := make([]*Appointment, 0, len(appts))
	for _, a := range appts {
		if a.Status.Eligible() {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i].TokenNumber < out[j].TokenNumber
	})
	return out
}

// DisplayOrder is the doctor dashboard view: the consulting appointment
// first, then the waiting line in call order, then completed, then
// cancelled and expired. It never feeds Call Next.
func DisplayOrder(appts []*Appointment) []*Appointment {
	out := make([]*Appointment, 0, len(appts))
	if cur := Consulting(appts); cur != nil {
		out = append(out, cur)
	}
	out = append(out, CallOrder(appts)...)
	out = append(out, byToken(appts, func(s Status) bool { return s == StatusCompleted })...)
	out = append(out, byToken(appts, func(s Status) bool {
		return s == StatusCancelled || s == StatusExpired
	})...)
	return out
}

func byToken(appts []*Appointment, keep func(Status) bool) []*Appointment {
	var out []*Appointment
	for _, a := range appts {
		if keep(a.Status) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TokenNumber < out[j].TokenNumber })
	return out
}

// Consulting returns the scope's consulting appointment, or nil.
func Consulting(appts []*Appointment) *Appointment {
	for _, a := range appts {
		if a.Status == StatusConsulting {
			return a
		}
	}
	return nil
}

// Position is 1 + the number of eligible appointments served before id, or
// 0 when id is not eligible.
func Position(appts []*Appointment, id uuid.UUID) int {
	for i, a := range CallOrder(appts) {
		if a.ID == id {
			return i + 1
		}
	}
	return 0
}

// DisplayLabel is the doctor dashboard label for a status.
func DisplayLabel(s Status) string {
	switch s {
	case StatusBooked, StatusInQueue:
		return "WAITING"
	case StatusConsulting:
		return "IN CONSULTATION"
	case StatusCompleted:
		return "COMPLETED"
	case StatusCancelled:
		return "CANCELLED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return string(s)
	}
}
