package orchestrator

import "go.mozilla.org/autoland/tracker"

// TrackerAdapter wraps a *tracker.Client to satisfy TrackerClient, translating
// tracker.WaitingBug's nested attachment rows into the flat attachment-id
// list Discover consumes.
type TrackerAdapter struct {
	*tracker.Client
}

// NewTrackerAdapter builds a TrackerAdapter over client.
func NewTrackerAdapter(client *tracker.Client) *TrackerAdapter {
	return &TrackerAdapter{Client: client}
}

// GetWaitingBugs satisfies TrackerClient, flattening each WaitingBug's
// attachment rows into a plain patch-id slice.
func (a *TrackerAdapter) GetWaitingBugs() ([]WaitingBug, error) {
	raw, err := a.Client.GetWaitingBugs()
	if err != nil {
		return nil, err
	}
	out := make([]WaitingBug, 0, len(raw))
	for _, wb := range raw {
		ids := make([]int, 0, len(wb.Attachments))
		for _, a := range wb.Attachments {
			ids = append(ids, a.ID)
		}
		out = append(out, WaitingBug{
			BugID:       wb.BugID,
			Branches:    wb.Branches,
			TrySyntax:   wb.TrySyntax,
			StatusWhen:  wb.StatusWhen,
			Attachments: ids,
		})
	}
	return out, nil
}
