// Package directory resolves reviewer and approver permissions against an
// LDAP directory, grounded on original_source/autoland/users.py's LDAP
// class (get_group_members, is_member_of_group, get_bz_email,
// in_ldap_group). It is consulted by the orchestrator's patch-applicability
// check (P(patch,branch), spec.md §4) for every review and approval flag.
package directory

import (
	"context"
	"fmt"
	"net"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mattermost/ldap"

	"go.mozilla.org/autoland/faults"
)

const (
	groupsBaseDN  = "ou=groups,dc=mozilla"
	usersBaseDN   = "o=com,dc=mozilla"
	searchTimeout = 10 * time.Second
)

// searcher abstracts the one LDAP operation the client needs, so tests can
// inject a fake directory instead of dialing a real one — the same
// dependency-injection shape as vcs.Runner and bus.AMQPDialer.
type searcher interface {
	search(ctx context.Context, baseDN, filter string, attrs []string) ([]map[string][]string, error)
}

// Client wraps an LDAP connection with the group-membership and email
// fallback lookups the permission checks need.
type Client struct {
	backend searcher

	groupCache *lru.Cache[string, []string]
}

// NewClient builds a Client backed by a real LDAP connection. cacheSize
// bounds the short-lived group-membership cache (spec.md §9 calls for a
// bounded LDAP result cache, not an unbounded map).
func NewClient(host string, port int, bindDN, password string, cacheSize int) (*Client, error) {
	return newClientWithBackend(&realBackend{host: host, port: port, bindDN: bindDN, password: password}, cacheSize)
}

func newClientWithBackend(backend searcher, cacheSize int) (*Client, error) {
	cache, err := lru.New[string, []string](cacheSize)
	if err != nil {
		return nil, faults.New(faults.Internal, "directory.NewClient", err)
	}
	return &Client{backend: backend, groupCache: cache}, nil
}

// realBackend dials and binds to a live LDAP server for every search,
// mirroring users.py's LDAP.search (bind, then query, on each call).
type realBackend struct {
	host, bindDN, password string
	port                   int
}

func (b *realBackend) search(ctx context.Context, baseDN, filter string, attrs []string) ([]map[string][]string, error) {
	dialer := &net.Dialer{Timeout: searchTimeout}
	if deadline, ok := ctx.Deadline(); ok {
		dialer.Deadline = deadline
	}
	conn, err := ldap.DialURL(fmt.Sprintf("ldap://%s:%d", b.host, b.port), ldap.DialWithDialer(dialer))
	if err != nil {
		return nil, faults.New(faults.Transient, "directory.search", err)
	}
	defer conn.Close()
	if err := conn.Bind(b.bindDN, b.password); err != nil {
		return nil, faults.New(faults.Transient, "directory.search", err)
	}

	req := ldap.NewSearchRequest(
		baseDN,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 0, int(searchTimeout.Seconds()), false,
		filter, attrs, nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		return nil, faults.New(faults.Transient, "directory.search", err)
	}

	out := make([]map[string][]string, 0, len(res.Entries))
	for _, entry := range res.Entries {
		m := map[string][]string{}
		for _, a := range attrs {
			m[a] = entry.GetAttributeValues(a)
		}
		out = append(out, m)
	}
	return out, nil
}

// GroupMembers returns the union of memberUid values for every group
// matching the cn filter group (e.g. "scm_level_*" finds scm_level_1/2/3),
// mirroring get_group_members's set-union semantics.
func (c *Client) GroupMembers(ctx context.Context, group string) ([]string, error) {
	if members, ok := c.groupCache.Get(group); ok {
		return members, nil
	}

	entries, err := c.backend.search(ctx, groupsBaseDN, fmt.Sprintf("cn=%s", group), []string{"memberUid"})
	if err != nil {
		return nil, err
	}

	seen := map[string]struct{}{}
	var members []string
	for _, entry := range entries {
		for _, uid := range entry["memberUid"] {
			if _, dup := seen[uid]; dup {
				continue
			}
			seen[uid] = struct{}{}
			members = append(members, uid)
		}
	}
	c.groupCache.Add(group, members)
	return members, nil
}

// IsMemberOfGroup reports whether mail is a member of group.
func (c *Client) IsMemberOfGroup(ctx context.Context, mail, group string) (bool, error) {
	members, err := c.GroupMembers(ctx, group)
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == mail {
			return true, nil
		}
	}
	return false, nil
}

// BugzillaEmail looks up the LDAP user entry whose bugzillaEmail attribute
// equals email and returns that entry's mail attribute, mirroring
// get_bz_email. Returns "" with no error if no entry matches.
func (c *Client) BugzillaEmail(ctx context.Context, email string) (string, error) {
	entries, err := c.backend.search(ctx, usersBaseDN, fmt.Sprintf("bugzillaEmail=%s", email), []string{"mail"})
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", nil
	}
	vals := entries[0]["mail"]
	if len(vals) == 0 {
		return "", nil
	}
	return vals[0], nil
}

// InGroup is the single entry point every caller in this module uses to
// check group membership: it always consults both the direct email and, as a
// fallback, the LDAP mail mapped from it through the bugzillaEmail
// attribute, mirroring in_ldap_group exactly. This
// is intentionally the *only* membership-check function exported for
// caller use — having one path, not two independently maintained ones,
// is what prevents a caller from checking the direct email only and
// forgetting the bugzillaEmail fallback.
func (c *Client) InGroup(ctx context.Context, email, group string) (bool, error) {
	ok, err := c.IsMemberOfGroup(ctx, email, group)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}
	bzEmail, err := c.BugzillaEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if bzEmail == "" {
		return false, nil
	}
	return c.IsMemberOfGroup(ctx, bzEmail, group)
}
