package api

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ImageID identifies an analysis job.
type ImageID struct{ uuid.UUID }

// ParseImageID parses the canonical UUID form.
func ParseImageID(s string) (ImageID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ImageID{}, fmt.Errorf("api: invalid image id %q: %w", s, err)
	}

	return ImageID{u}, nil
}

// WebhookID identifies a registered webhook.
type WebhookID struct{ uuid.UUID }

// ParseWebhookID parses the canonical UUID form.
func ParseWebhookID(s string) (WebhookID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return WebhookID{}, fmt.Errorf("api: invalid webhook id %q: %w", s, err)
	}

	return WebhookID{u}, nil
}

// WebhookEventID identifies one webhook delivery. New ids are UUIDv7 so
// they sort by creation time.
type WebhookEventID struct{ uuid.UUID }

// ParseWebhookEventID parses the canonical UUID form.
func ParseWebhookEventID(s string) (WebhookEventID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return WebhookEventID{}, fmt.Errorf("api: invalid webhook event id %q: %w", s, err)
	}

	return WebhookEventID{u}, nil
}

// NewWebhookEventID returns a time-ordered id for the current instant.
func NewWebhookEventID() (WebhookEventID, error) {
	var random [10]byte
	if _, err := rand.Read(random[:]); err != nil {
		return WebhookEventID{}, fmt.Errorf("api: reading random bytes: %w", err)
	}

	return WebhookEventID{FormatUUIDv7(uint64(time.Now().UnixMilli()), random)}, nil
}

// FormatUUIDv7 packs a millisecond timestamp and ten random bytes into a
// version 7 UUID. It is a pure function of its inputs.
//
// Layout: bytes 0-3 hold millis>>16, bytes 4-5 hold the low 16 bits of
// millis, bytes 6-7 hold the version nibble over 12 random bits, byte 8
// holds the variant over 6 random bits, bytes 9-15 are random.
func FormatUUIDv7(millis uint64, random [10]byte) uuid.UUID {
	var u uuid.UUID

	binary.BigEndian.PutUint32(u[0:4], uint32(millis>>16))
	binary.BigEndian.PutUint16(u[4:6], uint16(millis&0xFFFF))

	randomAndVersion := uint16(random[0]) | (uint16(random[1])<<8)&0x0FFF | 0x7000
	binary.BigEndian.PutUint16(u[6:8], randomAndVersion)

	u[8] = (random[2] & 0x3F) | 0x80
	copy(u[9:], random[3:])

	return u
}

// OwnerID is the tenant and object id of the user owning a resource, written
// as "{tenant_id}_{oid}".
type OwnerID struct {
	TenantID uuid.UUID
	OID      uuid.UUID
}

// SamplesOwner owns the public sample images.
var SamplesOwner = OwnerID{}

var errInvalidOwnerID = errors.New("api: invalid owner id")

// ParseOwnerID parses "{tenant_id}_{oid}".
func ParseOwnerID(s string) (OwnerID, error) {
	tenant, oid, ok := strings.Cut(s, "_")
	if !ok {
		return OwnerID{}, fmt.Errorf("%w %q", errInvalidOwnerID, s)
	}

	t, err := uuid.Parse(tenant)
	if err != nil {
		return OwnerID{}, fmt.Errorf("%w %q: %w", errInvalidOwnerID, s, err)
	}

	o, err := uuid.Parse(oid)
	if err != nil {
		return OwnerID{}, fmt.Errorf("%w %q: %w", errInvalidOwnerID, s, err)
	}

	return OwnerID{TenantID: t, OID: o}, nil
}

func (o OwnerID) String() string {
	return o.TenantID.String() + "_" + o.OID.String()
}

// MarshalText implements encoding.TextMarshaler.
func (o OwnerID) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *OwnerID) UnmarshalText(b []byte) error {
	parsed, err := ParseOwnerID(string(b))
	if err != nil {
		return err
	}

	*o = parsed

	return nil
}
