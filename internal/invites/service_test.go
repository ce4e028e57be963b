package invites

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"wedding-invites/internal/models"
	"wedding-invites/internal/qr"
	"wedding-invites/internal/render"
	"wedding-invites/internal/storage"

	"github.com/rs/zerolog"
)

var header = []string{"Nom", "Indicatif", "Telephone", "D", "E", "Image", "Table", "Entre", "Date", "Heure", "ID"}

type failingStore struct {
	*storage.FileStore
	appendErr  error
	replaceErr error
}

func (f *failingStore) AppendRow(ctx context.Context, row []string) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.FileStore.AppendRow(ctx, row)
}

func (f *failingStore) ReplaceRow(ctx context.Context, position int, row []string) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	return f.FileStore.ReplaceRow(ctx, position, row)
}

type fixture struct {
	svc    *Service
	store  *failingStore
	assets string
}

func writeTemplate(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 800, 1200))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	p := filepath.Join(t.TempDir(), "modele_invitation.png")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return p
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctx := context.Background()

	fs, err := storage.NewFileStore("")
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := fs.AppendRow(ctx, header); err != nil {
		t.Fatalf("AppendRow header: %v", err)
	}
	store := &failingStore{FileStore: fs}

	issuer, err := qr.NewIssuer(qr.DefaultConfig())
	if err != nil {
		t.Fatalf("NewIssuer: %v", err)
	}

	assets := t.TempDir()
	renderer, err := render.NewRenderer(render.Config{
		TemplateFile:  writeTemplate(t),
		Dir:           assets,
		PublicBaseURL: "https://example.test/assets/docs/",
		BottomMargin:  470,
		NameY:         175,
	}, zerolog.Nop())
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}

	fixed := time.Date(2026, 10, 17, 18, 30, 0, 0, time.UTC)
	opts = append([]Option{WithClock(func() time.Time { return fixed })}, opts...)
	svc, err := NewService(store, issuer, renderer, zerolog.Nop(), opts...)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return &fixture{svc: svc, store: store, assets: assets}
}

func (f *fixture) assetFile(ref string) string {
	return filepath.Join(f.assets, filepath.Base(ref))
}

func (f *fixture) rowCount(t *testing.T) int {
	t.Helper()
	rows, err := f.store.ListAll(context.Background())
	if err != nil {
		t.Fatalf("ListAll: %v", err)
	}
	return len(rows)
}

func alice() AddInput {
	return AddInput{Name: "Alice", CountryCode: "+1", Phone: "5551234", TableNumber: "3"}
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestAddAppendsInvite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Add(ctx, alice())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !strings.HasPrefix(inv.UniqueID, "invite_") {
		t.Fatalf("UniqueID = %q, want invite_ prefix", inv.UniqueID)
	}
	if inv.CheckedIn {
		t.Fatalf("new invite is checked in")
	}
	if !inv.FlagD || !inv.FlagE {
		t.Fatalf("opaque flags should be written TRUE on creation")
	}
	if inv.DateAdded != "2026-10-17" {
		t.Fatalf("DateAdded = %q", inv.DateAdded)
	}
	if inv.InvitationImagePath == "" || !fileExists(f.assetFile(inv.InvitationImagePath)) {
		t.Fatalf("invitation image missing: %q", inv.InvitationImagePath)
	}
	if !strings.Contains(filepath.Base(inv.InvitationImagePath), inv.UniqueID) {
		t.Fatalf("image name %q does not embed id", inv.InvitationImagePath)
	}
	if n := f.rowCount(t); n != 2 {
		t.Fatalf("row count = %d, want 2", n)
	}

	rows, _ := f.store.ListAll(ctx)
	if rows[1][models.ColCheckedIn] != "FALSE" {
		t.Fatalf("stored check-in cell = %q, want FALSE", rows[1][models.ColCheckedIn])
	}

	found, err := f.svc.FindByCode(ctx, inv.UniqueID)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if found.Name != "Alice" || found.CountryCode != "+1" || found.Phone != "5551234" || found.TableNumber != "3" {
		t.Fatalf("FindByCode returned %+v", found)
	}
}

func TestAddRejectsMissingFields(t *testing.T) {
	f := newFixture(t)
	in := alice()
	in.Phone = "   "
	in.TableNumber = ""

	_, err := f.svc.Add(context.Background(), in)
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %T, want *ValidationError", err)
	}
	fields := map[string]bool{}
	for _, fe := range verr.Fields {
		fields[fe.Field] = true
	}
	if !fields["phone"] || !fields["tableNumber"] || len(fields) != 2 {
		t.Fatalf("failed fields = %v", verr.Fields)
	}
	if n := f.rowCount(t); n != 1 {
		t.Fatalf("store mutated on invalid input: %d rows", n)
	}
}

func TestAddDrawsUnusedID(t *testing.T) {
	ids := []string{"invite_dup", "invite_dup", "invite_fresh"}
	next := 0
	gen := func() string {
		id := ids[next]
		next++
		return id
	}
	f := newFixture(t, WithIDGenerator(gen))
	ctx := context.Background()

	first, err := f.svc.Add(ctx, alice())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	second, err := f.svc.Add(ctx, AddInput{Name: "Bob", CountryCode: "+33", Phone: "0600", TableNumber: "1"})
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if first.UniqueID != "invite_dup" || second.UniqueID != "invite_fresh" {
		t.Fatalf("ids = %q, %q", first.UniqueID, second.UniqueID)
	}
}

func TestAddIDSpaceExhausted(t *testing.T) {
	f := newFixture(t, WithIDGenerator(func() string { return "invite_same" }))
	ctx := context.Background()
	if _, err := f.svc.Add(ctx, alice()); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := f.svc.Add(ctx, alice()); !errors.Is(err, ErrIDSpaceExhausted) {
		t.Fatalf("err = %v, want ErrIDSpaceExhausted", err)
	}
}

func TestAddRemovesImageWhenAppendFails(t *testing.T) {
	f := newFixture(t)
	f.store.appendErr = storage.ErrUnavailable

	_, err := f.svc.Add(context.Background(), alice())
	if !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	matches, _ := filepath.Glob(filepath.Join(f.assets, "*.png"))
	if len(matches) != 0 {
		t.Fatalf("orphaned images left behind: %v", matches)
	}
}

func TestUpdateKeepsIDAndReplacesImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Add(ctx, alice())
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	oldFile := f.assetFile(inv.InvitationImagePath)

	name := "Alice B."
	updated, err := f.svc.Update(ctx, inv.UniqueID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.UniqueID != inv.UniqueID {
		t.Fatalf("UniqueID changed: %q -> %q", inv.UniqueID, updated.UniqueID)
	}
	if updated.Name != "Alice B." || updated.Phone != "5551234" || updated.TableNumber != "3" {
		t.Fatalf("partial update lost fields: %+v", updated)
	}
	if updated.InvitationImagePath == inv.InvitationImagePath {
		t.Fatalf("image path unchanged after update")
	}
	if !strings.Contains(filepath.Base(updated.InvitationImagePath), inv.UniqueID) {
		t.Fatalf("new image %q does not embed id", updated.InvitationImagePath)
	}
	if fileExists(oldFile) {
		t.Fatalf("old image %s still on disk", oldFile)
	}
	if !fileExists(f.assetFile(updated.InvitationImagePath)) {
		t.Fatalf("new image missing")
	}
	if updated.DateAdded != inv.DateAdded || !updated.FlagD || !updated.FlagE {
		t.Fatalf("preserved fields changed: %+v", updated)
	}
	if n := f.rowCount(t); n != 2 {
		t.Fatalf("row count = %d, want 2", n)
	}
}

func TestUpdatePreservesCheckIn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _ := f.svc.Add(ctx, alice())
	checked, err := f.svc.CheckIn(ctx, inv.UniqueID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	table := "7"
	updated, err := f.svc.Update(ctx, inv.UniqueID, UpdateInput{TableNumber: &table})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.CheckedIn || updated.CheckInTime != checked.CheckInTime {
		t.Fatalf("check-in state not preserved: %+v", updated)
	}

	out := false
	updated, err = f.svc.Update(ctx, inv.UniqueID, UpdateInput{CheckedIn: &out})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.CheckedIn || updated.CheckInTime != "" {
		t.Fatalf("check-out not applied: %+v", updated)
	}
}

func TestUpdateOnChangePolicy(t *testing.T) {
	f := newFixture(t, WithImagePolicy(RegenerateOnChange))
	ctx := context.Background()

	inv, _ := f.svc.Add(ctx, alice())

	table := "9"
	same, err := f.svc.Update(ctx, inv.UniqueID, UpdateInput{TableNumber: &table})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if same.InvitationImagePath != inv.InvitationImagePath {
		t.Fatalf("image regenerated without a name change")
	}
	if !fileExists(f.assetFile(inv.InvitationImagePath)) {
		t.Fatalf("kept image was removed")
	}

	name := "Alicia"
	renamed, err := f.svc.Update(ctx, inv.UniqueID, UpdateInput{Name: &name})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if renamed.InvitationImagePath == inv.InvitationImagePath {
		t.Fatalf("image not regenerated after a name change")
	}
	if fileExists(f.assetFile(inv.InvitationImagePath)) {
		t.Fatalf("stale image left on disk")
	}
}

func TestUpdateUnknownAndInvalid(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	name := "X"
	if _, err := f.svc.Update(ctx, "invite_missing", UpdateInput{Name: &name}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	inv, _ := f.svc.Add(ctx, alice())
	empty := " "
	for _, in := range []UpdateInput{
		{Name: &empty},
		{CountryCode: &empty},
		{Phone: &empty},
		{TableNumber: &empty},
	} {
		_, err := f.svc.Update(ctx, inv.UniqueID, in)
		var verr *ValidationError
		if !errors.Is(err, ErrInvalidInput) || !errors.As(err, &verr) || len(verr.Fields) != 1 {
			t.Fatalf("Update(%+v) err = %v, want one invalid field", in, err)
		}
	}

	got, err := f.svc.FindByCode(ctx, inv.UniqueID)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if got.CountryCode != inv.CountryCode || got.Phone != inv.Phone || got.TableNumber != inv.TableNumber {
		t.Fatalf("rejected update changed the row: %+v", got)
	}
}

func TestUpdateKeepsOldImageWhenWriteFails(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inv, _ := f.svc.Add(ctx, alice())
	f.store.replaceErr = storage.ErrUnavailable

	name := "Alice B."
	if _, err := f.svc.Update(ctx, inv.UniqueID, UpdateInput{Name: &name}); !errors.Is(err, storage.ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	matches, _ := filepath.Glob(filepath.Join(f.assets, "*.png"))
	if len(matches) != 1 || matches[0] != f.assetFile(inv.InvitationImagePath) {
		t.Fatalf("assets after failed update = %v", matches)
	}
}

func TestDeleteRemovesRowAndImage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Add(ctx, alice())
	b, _ := f.svc.Add(ctx, AddInput{Name: "Bob", CountryCode: "+33", Phone: "0600", TableNumber: "1"})

	if err := f.svc.Delete(ctx, a.UniqueID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n := f.rowCount(t); n != 2 {
		t.Fatalf("row count = %d, want 2", n)
	}
	if fileExists(f.assetFile(a.InvitationImagePath)) {
		t.Fatalf("deleted invite image still on disk")
	}
	if _, err := f.svc.FindByCode(ctx, a.UniqueID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("FindByCode after delete err = %v", err)
	}

	// Bob moved up one row; identifier addressing still finds him.
	found, err := f.svc.FindByCode(ctx, b.UniqueID)
	if err != nil {
		t.Fatalf("FindByCode: %v", err)
	}
	if found.Position != 1 {
		t.Fatalf("Bob position = %d, want 1", found.Position)
	}

	if err := f.svc.Delete(ctx, "invite_never"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete unknown err = %v, want ErrNotFound", err)
	}
}

func TestFindByCodeNeverIssued(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, _ = f.svc.Add(ctx, alice())

	for _, code := range []string{"invite_never_issued", "", "ID"} {
		if _, err := f.svc.FindByCode(ctx, code); !errors.Is(err, ErrNotFound) {
			t.Fatalf("FindByCode(%q) err = %v, want ErrNotFound", code, err)
		}
	}
}

func TestListCheckedInIsSubset(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _ := f.svc.Add(ctx, alice())
	_, _ = f.svc.Add(ctx, AddInput{Name: "Bob", CountryCode: "+33", Phone: "0600", TableNumber: "1"})
	if _, err := f.svc.CheckIn(ctx, a.UniqueID); err != nil {
		t.Fatalf("CheckIn: %v", err)
	}

	all, err := f.svc.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("List len = %d, want 2", len(all))
	}

	first, err := f.svc.ListCheckedIn(ctx)
	if err != nil {
		t.Fatalf("ListCheckedIn: %v", err)
	}
	second, _ := f.svc.ListCheckedIn(ctx)
	if len(first) != 1 || first[0].UniqueID != a.UniqueID {
		t.Fatalf("ListCheckedIn = %+v", first)
	}
	if len(second) != len(first) || second[0] != first[0] {
		t.Fatalf("ListCheckedIn not idempotent: %+v vs %+v", first, second)
	}
}

func TestCheckInTwice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	inv, _ := f.svc.Add(ctx, alice())

	checked, err := f.svc.CheckIn(ctx, inv.UniqueID)
	if err != nil {
		t.Fatalf("CheckIn: %v", err)
	}
	if !checked.CheckedIn || checked.CheckInTime != "2026-10-17T18:30:00Z" {
		t.Fatalf("CheckIn = %+v", checked)
	}

	again, err := f.svc.CheckIn(ctx, inv.UniqueID)
	if !errors.Is(err, ErrAlreadyCheckedIn) {
		t.Fatalf("second CheckIn err = %v", err)
	}
	if again.CheckInTime != checked.CheckInTime {
		t.Fatalf("second CheckIn changed time")
	}
}

func TestBackfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rows := [][]string{
		{"Carol", "+44", "7700"},
		{"Dan", "+1", "555", "TRUE", "TRUE", "https://example.test/assets/docs/existing.png", "2", "FALSE", "2026-01-01", "", "invite_dan"},
		{"", "+1", "555"},
		{"Eve", "+1", "556", "TRUE", "FALSE", "", "4", "FALSE", "2026-02-02", "", "invite_eve"},
	}
	for _, r := range rows {
		if err := f.store.AppendRow(ctx, r); err != nil {
			t.Fatalf("AppendRow: %v", err)
		}
	}

	report, err := f.svc.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill: %v", err)
	}
	if report.Scanned != 4 || report.Generated != 2 || report.Skipped != 2 {
		t.Fatalf("report = %+v", report)
	}

	all, _ := f.svc.List(ctx)
	byName := map[string]models.Invite{}
	for _, inv := range all {
		byName[inv.Name] = inv
	}

	carol := byName["Carol"]
	if !strings.HasPrefix(carol.UniqueID, "invite_") || carol.InvitationImagePath == "" {
		t.Fatalf("Carol not backfilled: %+v", carol)
	}
	if carol.DateAdded != "2026-10-17" {
		t.Fatalf("Carol DateAdded = %q", carol.DateAdded)
	}
	if !fileExists(f.assetFile(carol.InvitationImagePath)) {
		t.Fatalf("Carol image missing")
	}

	eve := byName["Eve"]
	if eve.UniqueID != "invite_eve" || eve.DateAdded != "2026-02-02" || eve.FlagE {
		t.Fatalf("Eve fields not preserved: %+v", eve)
	}
	if !strings.Contains(eve.InvitationImagePath, "invite_eve_") {
		t.Fatalf("Eve image = %q", eve.InvitationImagePath)
	}

	if byName["Dan"].InvitationImagePath != "https://example.test/assets/docs/existing.png" {
		t.Fatalf("Dan should be skipped")
	}

	again, err := f.svc.Backfill(ctx)
	if err != nil {
		t.Fatalf("Backfill again: %v", err)
	}
	if again.Generated != 0 {
		t.Fatalf("second backfill generated %d images", again.Generated)
	}
}

func TestParseImagePolicy(t *testing.T) {
	if p, err := ParseImagePolicy("ON_CHANGE"); err != nil || p != RegenerateOnChange {
		t.Fatalf("ParseImagePolicy = %v, %v", p, err)
	}
	if p, _ := ParseImagePolicy(""); p != RegenerateAlways {
		t.Fatalf("default policy = %v", p)
	}
	if _, err := ParseImagePolicy("sometimes"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}
