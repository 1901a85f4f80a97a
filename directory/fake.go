package directory

import "context"

// FakeBackend is a scripted searcher for tests: GroupMembersByGroup maps a
// group name to its memberUid list, and BugzillaEmails maps a bugzillaEmail
// attribute value to the mail of the user entry that carries it.
type FakeBackend struct {
	GroupMembersByGroup map[string][]string
	BugzillaEmails      map[string]string
	Err                 error
}

func (f *FakeBackend) search(_ context.Context, baseDN, filter string, attrs []string) ([]map[string][]string, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	switch baseDN {
	case groupsBaseDN:
		group := filter[len("cn="):]
		members, ok := f.GroupMembersByGroup[group]
		if !ok {
			return nil, nil
		}
		return []map[string][]string{{"memberUid": members}}, nil
	case usersBaseDN:
		email := filter[len("bugzillaEmail="):]
		bz, ok := f.BugzillaEmails[email]
		if !ok || bz == "" {
			return nil, nil
		}
		return []map[string][]string{{"mail": {bz}}}, nil
	default:
		return nil, nil
	}
}

// NewClientForTest builds a Client over a FakeBackend.
func NewClientForTest(backend *FakeBackend) *Client {
	c, _ := newClientWithBackend(backend, 64)
	return c
}
