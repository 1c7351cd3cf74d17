// Package chat implements the encrypted messaging channel between drive
// collaborators, including the reserved-prefix convention that delivers a
// new symmetric drive key inline in a message.
package chat

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"ceased/internal/ceased"
	"ceased/internal/crypto"
	"ceased/internal/hierarchy"
	"ceased/internal/identity"
	"ceased/internal/localfs"
)

// KeyMarker is the reserved content prefix identifying a message as a
// symmetric key delivery rather than user text. The value is fixed by the
// protocol; both sides must agree on it.
const KeyMarker = "RljUoVUFjfAFkfSEg61sWpcdnipjJe5vFwiVNTF75Nc"

const (
	// UsersFolder is the remote folder holding per-user subtrees.
	UsersFolder = "archiveinfo/users"

	// LedgerPath is the local plaintext message ledger, relative to the
	// sync root.
	LedgerPath = ".archiveinfo/chat.json"

	redactedSuffix  = "[REDACTED]"
	redactedContent = KeyMarker + redactedSuffix
	displayRedacted = "Drive Encryption Key: [REDACTED]"

	systemSender    = "System"
	keyReceivedText = "Archive key received."

	messageExt  = ".msg"
	messageMIME = "application/octet-stream"
)

// ErrUnknownRecipient indicates a chat target with no published public key.
var ErrUnknownRecipient = errors.New("recipient has no published public key")

// Message is one chat record. The ID is the ledger key, not part of the
// encoded record.
type Message struct {
	ID        string  `json:"-"`
	Timestamp float64 `json:"timestamp"`
	Content   string  `json:"content"`
	Sender    string  `json:"sender"`
}

// Ledger maps counterpart username -> message id -> message. It is the
// local plaintext mirror of everything sent and received.
type Ledger map[string]map[string]Message

// Config carries the dependencies of a Chat.
type Config struct {
	Username string
	DriveID  string
	Keys     ceased.KeyStore
	Identity *identity.Manager
	Local    *localfs.Dir
	Clock    ceased.Clock
	IDGen    ceased.IDGenerator
	Logger   ceased.Logger
}

// Chat provides per-recipient encrypted message delivery and history merge
// for one drive.
type Chat struct {
	username string
	driveID  string
	keys     ceased.KeyStore
	identity *identity.Manager
	local    *localfs.Dir
	clock    ceased.Clock
	idgen    ceased.IDGenerator
	logger   ceased.Logger
}

func New(cfg Config) *Chat {
	return &Chat{
		username: cfg.Username,
		driveID:  cfg.DriveID,
		keys:     cfg.Keys,
		identity: cfg.Identity,
		local:    cfg.Local,
		clock:    cfg.Clock,
		idgen:    cfg.IDGen,
		logger:   cfg.Logger,
	}
}

// Users returns every username with a subtree under the users folder.
func (c *Chat) Users(snap *hierarchy.Snapshot) []string {
	node, ok := snap.Lookup(UsersFolder)
	if !ok || !node.IsFolder() {
		return nil
	}
	users := make([]string, 0, len(node.Children))
	for name := range node.Children {
		users = append(users, name)
	}
	sort.Strings(users)
	return users
}

// Send encrypts content to the recipient's published public key and uploads
// it under the sender's per-recipient message folder, then records the
// plaintext in the local ledger. Fails with ErrUnknownRecipient before any
// remote write if the recipient has no published key.
func (c *Chat) Send(ctx context.Context, snap *hierarchy.Snapshot, recipient, content string) (Message, error) {
	publicKeyPath := UsersFolder + "/" + recipient + "/public.asc"
	if !snap.Exists(publicKeyPath) {
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownRecipient, recipient)
	}

	inbox := UsersFolder + "/" + recipient + "/messages/" + c.username
	if err := snap.EnsureFolder(ctx, inbox); err != nil {
		return Message{}, err
	}

	publicPEM, err := snap.Download(ctx, publicKeyPath)
	if err != nil {
		return Message{}, err
	}

	msg := Message{
		ID:        c.idgen.New(),
		Timestamp: timestamp(c.clock),
		Content:   content,
		Sender:    c.username,
	}

	record, err := json.Marshal(msg)
	if err != nil {
		return Message{}, fmt.Errorf("encoding message: %w", err)
	}
	encrypted, err := crypto.AsymmetricEncrypt(record, publicPEM)
	if err != nil {
		return Message{}, fmt.Errorf("encrypting message for %s: %w", recipient, err)
	}

	if err := snap.CreateFile(ctx, inbox+"/"+msg.ID+messageExt, encrypted, messageMIME); err != nil {
		return Message{}, err
	}

	ledger, err := c.loadLedger()
	if err != nil {
		return Message{}, err
	}
	ledger.put(recipient, msg)
	if err := c.saveLedger(ledger); err != nil {
		return Message{}, err
	}

	c.logger.Info("message sent", "recipient", recipient, "id", msg.ID)
	return msg, nil
}

// Refresh downloads and decrypts messages addressed to this user that are
// not yet in the ledger (all of them when force is set), installs any
// delivered symmetric key, and persists the merged ledger. Key-delivery
// contents are redacted before they are stored, so a delivered key is
// installed exactly once.
func (c *Chat) Refresh(ctx context.Context, snap *hierarchy.Snapshot, force bool) (Ledger, error) {
	ledger, err := c.loadLedger()
	if err != nil {
		return nil, err
	}

	var privatePEM []byte // fetched on first need, so a locked key only blocks actual downloads
	for _, user := range c.Users(snap) {
		folder, ok := snap.Lookup(UsersFolder + "/" + c.username + "/messages/" + user)
		if !ok || !folder.IsFolder() {
			continue
		}

		for filename, node := range folder.Children {
			if node.IsFolder() {
				continue
			}
			id := strings.TrimSuffix(filename, messageExt)
			if _, seen := ledger.get(user, id); seen && !force {
				continue
			}

			if privatePEM == nil {
				privatePEM, err = c.identity.PrivateKeyPEM()
				if err != nil {
					return nil, fmt.Errorf("loading private key: %w", err)
				}
			}

			encrypted, err := snap.Download(ctx, UsersFolder+"/"+c.username+"/messages/"+user+"/"+filename)
			if err != nil {
				return nil, err
			}
			record, err := crypto.AsymmetricDecrypt(encrypted, privatePEM)
			if err != nil {
				return nil, fmt.Errorf("decrypting message %s from %s: %w", id, user, err)
			}

			var msg Message
			if err := json.Unmarshal(record, &msg); err != nil {
				return nil, fmt.Errorf("parsing message %s from %s: %w", id, user, err)
			}
			msg.ID = id
			msg.Sender = user

			if strings.HasPrefix(msg.Content, KeyMarker) {
				if err := c.installKey(msg.Content); err != nil {
					return nil, err
				}
				msg.Content = redactedContent
				ledger.put(user, c.systemMessage(timestamp(c.clock)))
				c.logger.Info("archive key received", "from", user)
			}

			ledger.put(user, msg)
		}
	}

	if err := c.saveLedger(ledger); err != nil {
		return nil, err
	}
	return ledger, nil
}

// Messages returns the ledger entries for one counterpart ordered by
// timestamp. Any key-delivery entry that predates the redaction convention
// is handled here once: the key is installed, a synthetic system entry is
// added just after it, and the redaction is persisted immediately so later
// reads never repeat the side effect.
func (c *Chat) Messages(counterpart string) ([]Message, error) {
	ledger, err := c.loadLedger()
	if err != nil {
		return nil, err
	}

	entries := ledger[counterpart]
	changed := false
	for id, msg := range entries {
		if !strings.HasPrefix(msg.Content, KeyMarker) {
			continue
		}
		if strings.TrimPrefix(msg.Content, KeyMarker) == redactedSuffix {
			continue
		}

		if msg.Sender != c.username {
			if err := c.installKey(msg.Content); err != nil {
				return nil, err
			}
			ledger.put(counterpart, c.systemMessage(msg.Timestamp+0.1))
		}
		msg.Content = redactedContent
		entries[id] = msg
		changed = true
	}

	if changed {
		if err := c.saveLedger(ledger); err != nil {
			return nil, err
		}
		entries = ledger[counterpart]
	}

	out := make([]Message, 0, len(entries))
	for id, msg := range entries {
		msg.ID = id
		if strings.HasPrefix(msg.Content, KeyMarker) {
			msg.Content = displayRedacted
		}
		out = append(out, msg)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp != out[j].Timestamp {
			return out[i].Timestamp < out[j].Timestamp
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// installKey decodes the key payload following the marker and stores it as
// the drive's symmetric key.
func (c *Chat) installKey(content string) error {
	encoded := strings.TrimPrefix(content, KeyMarker)
	key, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return fmt.Errorf("decoding delivered key: %w", err)
	}
	if err := c.keys.Set("archives/"+c.driveID, key); err != nil {
		return fmt.Errorf("installing delivered key: %w", err)
	}
	return nil
}

func (c *Chat) systemMessage(ts float64) Message {
	return Message{
		ID:        c.idgen.New(),
		Timestamp: ts,
		Content:   keyReceivedText,
		Sender:    systemSender,
	}
}

func (c *Chat) loadLedger() (Ledger, error) {
	if !c.local.Exists(LedgerPath) {
		return make(Ledger), nil
	}
	data, err := c.local.Read(LedgerPath)
	if err != nil {
		return nil, err
	}

	var ledger Ledger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, fmt.Errorf("parsing message ledger: %w", err)
	}
	return ledger, nil
}

func (c *Chat) saveLedger(ledger Ledger) error {
	data, err := json.Marshal(ledger)
	if err != nil {
		return fmt.Errorf("encoding message ledger: %w", err)
	}
	return c.local.Write(LedgerPath, data)
}

func (l Ledger) put(counterpart string, msg Message) {
	if l[counterpart] == nil {
		l[counterpart] = make(map[string]Message)
	}
	l[counterpart][msg.ID] = msg
}

func (l Ledger) get(counterpart, id string) (Message, bool) {
	msg, ok := l[counterpart][id]
	return msg, ok
}

func timestamp(clock ceased.Clock) float64 {
	return float64(clock.Now().UnixNano()) / 1e9
}
