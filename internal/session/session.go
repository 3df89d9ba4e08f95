// Package session holds the state of an interactive editing session: the
// images opened from one or more records, the active (address, field)
// pointer and a log of applied operations.
package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"math/rand/v2"
	"strconv"

	"github.com/mesh-intelligence/glworbs/internal/annotate"
	"github.com/mesh-intelligence/glworbs/internal/images"
	"github.com/mesh-intelligence/glworbs/internal/imageops"
	"github.com/mesh-intelligence/glworbs/internal/refs"
	"github.com/mesh-intelligence/glworbs/pkg/types"
)

// Selectors accepted by Use in place of an address.
const (
	SelectRandom = "random"
	SelectLatest = "latest"
	// KeepField tells Use to keep the first loaded field active.
	KeepField = "_"
)

// CreatedField holds the creation timestamp compared by SelectLatest.
const CreatedField = "created"

// Pointer identifies the image being edited.
type Pointer struct {
	Address string
	Field   string
}

// Op is one entry of the operation log.
type Op struct {
	Name string
	Args []string
	// Rect is set when the operation returned geometry.
	Rect *imageops.Rect
}

func (o Op) String() string {
	s := o.Name
	for _, a := range o.Args {
		s += " " + a
	}
	if o.Rect != nil {
		s += " -> " + o.Rect.String()
	}
	return s
}

type record struct {
	handles  map[string]*images.Handle
	fields   []string
	metadata *types.Fields
}

// Session is not safe for concurrent use.
type Session struct {
	records  types.RecordStore
	opener   *images.Opener
	interp   *annotate.Interpreter
	resolver *refs.Resolver
	logger   *slog.Logger
	pattern  string
	intN     func(n int) int

	loaded map[string]*record
	order  []string
	active *Pointer
	ops    []Op
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for skipped fields.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithResolver sets which fields are treated as images.
func WithResolver(r *refs.Resolver) Option {
	return func(s *Session) { s.resolver = r }
}

// WithScanPattern sets the pattern random and latest select from.
func WithScanPattern(p string) Option {
	return func(s *Session) { s.pattern = p }
}

// WithRandom replaces the source of random indexes.
func WithRandom(intN func(n int) int) Option {
	return func(s *Session) { s.intN = intN }
}

// New returns an empty session.
func New(records types.RecordStore, blobs types.BlobStore, interp *annotate.Interpreter, opts ...Option) *Session {
	s := &Session{
		records: records,
		opener:  &images.Opener{Records: records, Blobs: blobs},
		interp:  interp,
		logger:  slog.Default(),
		pattern: types.DefaultScanPattern,
		intN:    rand.IntN,
		loaded:  make(map[string]*record),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = refs.NewResolver(types.DefaultConfig())
	}
	return s
}

// Load opens every image field of the record at address and snapshots its
// fields. Fields that fail to open are logged and skipped. Loading an
// address again replaces its images. The first image opened becomes active
// when nothing is.
func (s *Session) Load(ctx context.Context, address string) error {
	fields, err := s.records.GetAll(ctx, address)
	if err != nil {
		return fmt.Errorf("load %s: %w", address, err)
	}
	if prev, ok := s.loaded[address]; ok {
		prev.close()
	} else {
		s.order = append(s.order, address)
	}

	rec := &record{handles: make(map[string]*images.Handle), metadata: fields.Clone()}
	for _, f := range fields.Pairs() {
		if !s.resolver.Classify(f.Name, f.Value).IsReference() {
			continue
		}
		h, err := s.opener.Open(ctx, address, f.Name)
		if err != nil {
			s.logger.Warn("field skipped", "address", address, "field", f.Name, "err", err)
			continue
		}
		rec.handles[f.Name] = h
		rec.fields = append(rec.fields, f.Name)
	}
	s.loaded[address] = rec

	if s.active != nil && s.active.Address == address {
		if _, ok := rec.handles[s.active.Field]; !ok {
			s.active = nil
		}
	}
	if s.active == nil && len(rec.fields) > 0 {
		s.active = &Pointer{Address: address, Field: rec.fields[0]}
	}
	return nil
}

// Use clears the session and loads one record. target is an address,
// SelectRandom or SelectLatest; the selectors pick among the addresses
// matching the scan pattern. A field other than "" or KeepField becomes
// active. Use returns the loaded address.
func (s *Session) Use(ctx context.Context, target, field string) (string, error) {
	address, err := s.resolve(ctx, target)
	if err != nil {
		return "", err
	}
	s.Close()
	if err := s.Load(ctx, address); err != nil {
		return "", err
	}
	if field != "" && field != KeepField {
		if err := s.SetActiveField(field); err != nil {
			return address, err
		}
	}
	return address, nil
}

func (s *Session) resolve(ctx context.Context, target string) (string, error) {
	if target != SelectRandom && target != SelectLatest {
		return target, nil
	}
	addrs, err := s.records.Scan(ctx, s.pattern)
	if err != nil {
		return "", fmt.Errorf("select %s: %w", target, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("select %s from %q: %w", target, s.pattern, types.ErrNothingToSelect)
	}
	if target == SelectRandom {
		return addrs[s.intN(len(addrs))], nil
	}

	// Latest by created timestamp; the last address in scan order when no
	// record carries one.
	best, bestAt := addrs[len(addrs)-1], 0.0
	found := false
	for _, addr := range addrs {
		v, err := s.records.GetField(ctx, addr, CreatedField)
		if err != nil {
			continue
		}
		at, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		if !found || at > bestAt {
			best, bestAt, found = addr, at, true
		}
	}
	return best, nil
}

// SetActiveField makes field of the active record active. The field must
// have been loaded.
func (s *Session) SetActiveField(field string) error {
	address := ""
	if s.active != nil {
		address = s.active.Address
	} else if len(s.order) > 0 {
		address = s.order[0]
	}
	rec, ok := s.loaded[address]
	if !ok {
		return fmt.Errorf("field %q: %w", field, types.ErrFieldNotLoaded)
	}
	if _, ok := rec.handles[field]; !ok {
		return fmt.Errorf("field %q of %s: %w", field, address, types.ErrFieldNotLoaded)
	}
	s.active = &Pointer{Address: address, Field: field}
	return nil
}

// SetActiveAddress makes the first loaded field of address active.
func (s *Session) SetActiveAddress(address string) error {
	rec, ok := s.loaded[address]
	if !ok || len(rec.fields) == 0 {
		return fmt.Errorf("%s has no loaded fields: %w", address, types.ErrFieldNotLoaded)
	}
	s.active = &Pointer{Address: address, Field: rec.fields[0]}
	return nil
}

// Active returns the active pointer.
func (s *Session) Active() (Pointer, bool) {
	if s.active == nil {
		return Pointer{}, false
	}
	return *s.active, true
}

// ActiveImage returns the image being edited.
func (s *Session) ActiveImage() (*image.NRGBA, error) {
	h, err := s.activeHandle()
	if err != nil {
		return nil, err
	}
	return h.Image, nil
}

func (s *Session) activeHandle() (*images.Handle, error) {
	if s.active == nil {
		return nil, types.ErrNoActiveImage
	}
	return s.loaded[s.active.Address].handles[s.active.Field], nil
}

// Apply runs one layer on the active image, substituting the record's
// snapshot fields. An image result replaces the active image; geometry is
// returned and logged. Errors are returned as is.
func (s *Session) Apply(spec string) (imageops.Result, error) {
	h, err := s.activeHandle()
	if err != nil {
		return imageops.Result{}, err
	}
	subs := s.loaded[s.active.Address].metadata.Map()
	res, layer, err := s.interp.Step(h.Image, spec, subs, imageops.Mutate)
	if err != nil {
		return imageops.Result{}, err
	}

	op := Op{Name: layer.Kind.String(), Args: layer.Args}
	if rect, ok := res.Rect(); ok {
		op.Rect = &rect
	} else if img, ok := res.Image(); ok {
		h.Image = img
	}
	s.ops = append(s.ops, op)
	return res, nil
}

// Geometry runs one layer in geometry mode on the active image.
func (s *Session) Geometry(spec string) (imageops.Rect, error) {
	h, err := s.activeHandle()
	if err != nil {
		return imageops.Rect{}, err
	}
	return s.interp.Geometry(h.Image, spec, s.loaded[s.active.Address].metadata.Map())
}

// Revert reopens the active field from the store, dropping its edits, and
// clears the operation log. Other fields are untouched.
func (s *Session) Revert(ctx context.Context) error {
	h, err := s.activeHandle()
	if err != nil {
		return err
	}
	fresh, err := s.opener.Open(ctx, s.active.Address, s.active.Field)
	if err != nil {
		return fmt.Errorf("revert: %w", err)
	}
	h.Close()
	s.loaded[s.active.Address].handles[s.active.Field] = fresh
	s.ops = nil
	return nil
}

// Ops returns the operation log.
func (s *Session) Ops() []Op {
	return append([]Op(nil), s.ops...)
}

// Loaded returns the loaded addresses in load order.
func (s *Session) Loaded() []string {
	return append([]string(nil), s.order...)
}

// Fields returns the loaded image fields of address.
func (s *Session) Fields(address string) []string {
	rec, ok := s.loaded[address]
	if !ok {
		return nil
	}
	return append([]string(nil), rec.fields...)
}

// Metadata returns a copy of the fields captured when address was loaded.
func (s *Session) Metadata(address string) (*types.Fields, bool) {
	rec, ok := s.loaded[address]
	if !ok {
		return nil, false
	}
	return rec.metadata.Clone(), true
}

// Info lists every loaded record and its image fields, marking the active
// one.
func (s *Session) Info() []string {
	var lines []string
	for _, addr := range s.order {
		rec := s.loaded[addr]
		lines = append(lines, addr)
		for _, name := range rec.fields {
			h := rec.handles[name]
			line := fmt.Sprintf("  %-20s %dx%d %s", name, h.Image.Rect.Dx(), h.Image.Rect.Dy(), h.Key)
			if s.active != nil && *s.active == (Pointer{Address: addr, Field: name}) {
				line += " * (active)"
			}
			lines = append(lines, line)
		}
	}
	return lines
}

// Close releases every image and empties the session.
func (s *Session) Close() error {
	for _, rec := range s.loaded {
		rec.close()
	}
	s.loaded = make(map[string]*record)
	s.order = nil
	s.active = nil
	s.ops = nil
	return nil
}

func (r *record) close() {
	for _, h := range r.handles {
		h.Close()
	}
}
