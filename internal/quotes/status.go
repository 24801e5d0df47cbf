package quotes

import (
	"slices"

	"github.com/bher20/equotemanager/internal/storage"
)

// transitions lists where a lead may move from each status. Setting the
// current status again is always allowed.
var transitions = map[string][]string{
	storage.LeadStatusNew:       {storage.LeadStatusContacted, storage.LeadStatusScheduled, storage.LeadStatusLost},
	storage.LeadStatusContacted: {storage.LeadStatusScheduled, storage.LeadStatusWon, storage.LeadStatusLost},
	storage.LeadStatusScheduled: {storage.LeadStatusContacted, storage.LeadStatusWon, storage.LeadStatusLost},
	storage.LeadStatusWon:       {},
	storage.LeadStatusLost:      {storage.LeadStatusContacted},
}

// ValidStatus reports whether s is a known lead status.
func ValidStatus(s string) bool {
	_, ok := transitions[s]
	return ok
}

func checkTransition(from, to string) error {
	if !ValidStatus(to) {
		return fieldErr("status", "must be one of new, contacted, scheduled, won, lost")
	}
	if from == to || slices.Contains(transitions[from], to) {
		return nil
	}
	return fieldErr("status", "cannot move from "+from+" to "+to)
}
