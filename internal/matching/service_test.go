package matching

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localhands/matchd/internal/model"
	"github.com/localhands/matchd/internal/store"
)

type fakeListingSource struct {
	listings []model.Listing
	err      error
}

func (f *fakeListingSource) EligibleListings(_ context.Context, kind model.ListingKind, excludeOwner uuid.UUID, _ int) ([]model.Listing, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make([]model.Listing, 0, len(f.listings))
	for _, l := range f.listings {
		if l.Kind == kind && l.OwnerID != excludeOwner {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeListingSource) Profile(_ context.Context, _ uuid.UUID) (*model.Profile, error) {
	return nil, store.ErrNotFound
}

type failingScorer struct{}

func (failingScorer) ScoreCandidates(_ context.Context, _ string, _ *model.Profile, _ []model.Listing) ([]MatchResult, error) {
	return nil, errors.New("scorer exploded")
}

func TestSearchFiltersAndRanks(t *testing.T) {
	caller := uuid.New()
	poster := uuid.New()

	src := &fakeListingSource{listings: []model.Listing{
		{OwnerID: poster, Kind: model.KindSeekingWork, Title: "React Developer", Skills: []string{"react"}, Remote: true, Active: true},
		{OwnerID: poster, Kind: model.KindSeekingWork, Title: "On-site React Developer", Skills: []string{"react"}, Active: true},
		{OwnerID: caller, Kind: model.KindSeekingWork, Title: "My own react listing", Skills: []string{"react"}, Active: true},
	}}

	service := NewService(src, nil, nil, zap.NewNop())

	results, err := service.Search(context.Background(), "react", model.KindSeekingWork, caller, Filters{RemoteOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected only the remote listing, got %d results", len(results))
	}

	if results[0].Listing.Title != "React Developer" {
		t.Fatalf("unexpected result: %+v", results[0])
	}
}

func TestSearchRejectsUnknownKind(t *testing.T) {
	service := NewService(&fakeListingSource{}, nil, nil, zap.NewNop())

	_, err := service.Search(context.Background(), "react", "freelance", uuid.New(), Filters{})
	if err == nil {
		t.Fatalf("expected an error for an unknown kind")
	}
}

func TestSearchPropagatesStoreFailure(t *testing.T) {
	src := &fakeListingSource{err: errors.New("connection refused")}
	service := NewService(src, nil, nil, zap.NewNop())

	_, err := service.Search(context.Background(), "react", model.KindSeekingWork, uuid.New(), Filters{})
	if err == nil {
		t.Fatalf("expected the store failure to surface")
	}
}

func TestSearchDegradesWhenScorerFails(t *testing.T) {
	poster := uuid.New()
	src := &fakeListingSource{listings: []model.Listing{
		{OwnerID: poster, Kind: model.KindSeekingWork, Title: "React Developer", Skills: []string{"react"}, Active: true},
	}}

	service := NewService(src, failingScorer{}, nil, zap.NewNop())

	results, err := service.Search(context.Background(), "react", model.KindSeekingWork, uuid.New(), Filters{})
	if err != nil {
		t.Fatalf("expected the lexical fallback to absorb the failure, got: %v", err)
	}

	if len(results) != 1 {
		t.Fatalf("expected the fallback ranking, got %d results", len(results))
	}
}
