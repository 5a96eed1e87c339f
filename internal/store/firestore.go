package store

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Lllllllleong/reportflow/internal/models"
)

// SectorAnalysesCollection is the sub-collection holding one document per sector.
const SectorAnalysesCollection = "sector_analyses"

// FirestoreStore keeps one document per report in a collection, with sector
// analyses in a sub-collection of that document.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	return &FirestoreStore{client: client, collection: collection}
}

func (s *FirestoreStore) docRef(reportID string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(reportID)
}

func (s *FirestoreStore) Get(ctx context.Context, reportID string) (*models.FlowDocument, error) {
	ref := s.docRef(reportID)
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read flow %s: %w", reportID, err)
	}
	var doc models.FlowDocument
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode flow %s: %w", reportID, err)
	}

	iter := ref.Collection(SectorAnalysesCollection).Documents(ctx)
	defer iter.Stop()
	for {
		sectorSnap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list sector analyses of %s: %w", reportID, err)
		}
		var sa models.SectorAnalysis
		if err := sectorSnap.DataTo(&sa); err != nil {
			return nil, fmt.Errorf("failed to decode sector analysis %s/%s: %w", reportID, sectorSnap.Ref.ID, err)
		}
		if doc.SectorAnalyses == nil {
			doc.SectorAnalyses = map[models.Sector]models.SectorAnalysis{}
		}
		doc.SectorAnalyses[sa.SectorName] = sa
	}
	return &doc, nil
}

func (s *FirestoreStore) SaveFlow(ctx context.Context, doc *models.FlowDocument, opts SaveOptions) error {
	if doc == nil || doc.ReportID == "" {
		return errors.New("report id is required")
	}
	ref := s.docRef(doc.ReportID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		var existing *models.FlowDocument
		snap, err := tx.Get(ref)
		switch {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return fmt.Errorf("failed to read flow %s: %w", doc.ReportID, err)
		default:
			existing = &models.FlowDocument{}
			if err := snap.DataTo(existing); err != nil {
				return fmt.Errorf("failed to decode flow %s: %w", doc.ReportID, err)
			}
		}

		var stale []*firestore.DocumentRef
		if doc.AnalysisMetadata != nil {
			if stale, err = s.sectorRefs(tx, ref); err != nil {
				return err
			}
		}

		merged := MergeFlow(existing, doc, opts)
		if err := tx.Set(ref, merged); err != nil {
			return fmt.Errorf("failed to write flow %s: %w", doc.ReportID, err)
		}
		if doc.AnalysisMetadata != nil {
			return writeSectors(tx, ref, stale, doc.SectorAnalyses)
		}
		return nil
	})
}

func (s *FirestoreStore) SaveAnalysis(ctx context.Context, reportID string, upd AnalysisUpdate) error {
	if err := validateUpdate(reportID, upd); err != nil {
		return err
	}
	ref := s.docRef(reportID)
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read flow %s: %w", reportID, err)
		}
		version := 0
		if v, err := snap.DataAt("analysis_metadata.version"); err == nil {
			if n, ok := v.(int64); ok {
				version = int(n)
			}
		}
		if version != upd.ExpectedVersion {
			return fmt.Errorf("%w: report %s is at version %d, expected %d", ErrConflict, reportID, version, upd.ExpectedVersion)
		}
		stale, err := s.sectorRefs(tx, ref)
		if err != nil {
			return err
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "overall_analysis", Value: upd.Overall},
			{Path: "analysis_metadata", Value: upd.Metadata},
		}); err != nil {
			return fmt.Errorf("failed to update analysis of %s: %w", reportID, err)
		}
		return writeSectors(tx, ref, stale, upd.Sectors)
	})
}

// sectorRefs lists the stored sector analysis documents. Firestore requires all
// transaction reads to happen before the first write.
func (s *FirestoreStore) sectorRefs(tx *firestore.Transaction, ref *firestore.DocumentRef) ([]*firestore.DocumentRef, error) {
	iter := tx.Documents(ref.Collection(SectorAnalysesCollection))
	defer iter.Stop()
	var refs []*firestore.DocumentRef
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			return refs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list sector analyses of %s: %w", ref.ID, err)
		}
		refs = append(refs, snap.Ref)
	}
}

// writeSectors replaces the sector analysis set of a report.
func writeSectors(tx *firestore.Transaction, ref *firestore.DocumentRef, stale []*firestore.DocumentRef, sectors map[models.Sector]models.SectorAnalysis) error {
	for _, old := range stale {
		if _, keep := sectors[models.Sector(old.ID)]; keep {
			continue
		}
		if err := tx.Delete(old); err != nil {
			return fmt.Errorf("failed to delete sector analysis %s/%s: %w", ref.ID, old.ID, err)
		}
	}
	for sector, sa := range sectors {
		if err := tx.Set(ref.Collection(SectorAnalysesCollection).Doc(string(sector)), sa); err != nil {
			return fmt.Errorf("failed to write sector analysis %s/%s: %w", ref.ID, sector, err)
		}
	}
	return nil
}
