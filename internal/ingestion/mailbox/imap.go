package mailbox

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"listing_leads_backend/platform/config"

	imap "github.com/BrianLeishman/go-imap"
)

// Message is one fetched email reduced to the fields ingestion needs.
type Message struct {
	UID     int
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Source fetches messages newer than a UID cursor.
type Source interface {
	Name() string
	FetchAfter(ctx context.Context, afterUID int, limit int) ([]Message, error)
}

// IMAPSource reads one folder of an IMAP mailbox. A new connection is opened per fetch.
type IMAPSource struct {
	host     string
	port     int
	username string
	password string
	folder   string
}

func NewIMAPSource(cfg config.MailboxConfig) *IMAPSource {
	folder := cfg.GetIMAPFolder()
	if folder == "" {
		folder = "INBOX"
	}
	return &IMAPSource{
		host:     cfg.GetIMAPHost(),
		port:     cfg.GetIMAPPort(),
		username: cfg.GetIMAPUsername(),
		password: cfg.GetIMAPPassword(),
		folder:   folder,
	}
}

// Name identifies the cursor row for this mailbox.
func (s *IMAPSource) Name() string {
	return fmt.Sprintf("%s@%s/%s", s.username, s.host, s.folder)
}

func (s *IMAPSource) FetchAfter(ctx context.Context, afterUID int, limit int) ([]Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := imap.New(s.username, s.password, s.host, s.port)
	if err != nil {
		return nil, fmt.Errorf("connect imap: %w", err)
	}
	defer conn.Close()

	if err := conn.SelectFolder(s.folder); err != nil {
		return nil, fmt.Errorf("select folder %s: %w", s.folder, err)
	}

	// "n:*" always matches the newest message, so results are filtered again below.
	uids, err := conn.GetUIDs(fmt.Sprintf("UID %d:*", afterUID+1))
	if err != nil {
		return nil, fmt.Errorf("search uids: %w", err)
	}
	fresh := make([]int, 0, len(uids))
	for _, uid := range uids {
		if uid > afterUID {
			fresh = append(fresh, uid)
		}
	}
	if len(fresh) == 0 {
		return nil, nil
	}
	sort.Ints(fresh)
	if limit > 0 && len(fresh) > limit {
		fresh = fresh[:limit]
	}

	emails, err := conn.GetEmails(fresh...)
	if err != nil {
		return nil, fmt.Errorf("fetch emails: %w", err)
	}

	out := make([]Message, 0, len(emails))
	for uid, e := range emails {
		out = append(out, Message{
			UID:     uid,
			From:    formatAddresses(e.From),
			To:      formatAddresses(e.To),
			Subject: e.Subject,
			Text:    e.Text,
			HTML:    e.HTML,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UID < out[j].UID })
	return out, nil
}

func formatAddresses(addrs imap.EmailAddresses) string {
	parts := make([]string, 0, len(addrs))
	for address, name := range addrs {
		if name = strings.TrimSpace(name); name != "" {
			parts = append(parts, fmt.Sprintf("%s <%s>", name, address))
			continue
		}
		parts = append(parts, address)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
