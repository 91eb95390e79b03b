package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	ierr "github.com/kami-operation/kamiops/internal/errors"
	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/validation"
)

// expireBatch bounds one sweep
const expireBatch = 100

// Submit sends a draft for signature. Documents without signatories are sealed right away.
func (s *Service) Submit(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	dt := doc.DocumentType
	if dt == nil {
		if dt, err = s.documentTypes.Get(ctx, doc.DocumentTypeID); err != nil {
			return nil, err
		}
	}

	// 1. Full data validation
	if err := validation.ValidateDocumentData(dt.Fields(), doc.Data, true); err != nil {
		return nil, err
	}
	if dt.RequiresSignature && len(doc.Signatories) == 0 {
		return nil, ierr.NewError("no signatories").
			WithHint("At least one signatory is required").
			WithReportableDetails(map[string]string{"signatories": "at least one signatory is required"}).
			Mark(ierr.ErrValidation)
	}

	// 2. DRAFT -> SUBMITTED
	from, err := s.transition(doc, models.StatusSubmitted)
	if err != nil {
		return nil, err
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.announce(ctx, doc, from)

	// 3. Ask the first signer, or finish straight away
	if first := doc.CurrentSignatory(); first != nil {
		s.notify(ctx, doc, models.NotifySignatureRequested,
			"Signature requested",
			fmt.Sprintf("%s awaits your signature", doc.Reference),
			first.UserID)
		return s.documents.Get(ctx, doc.ID)
	}
	return s.complete(ctx, doc)
}

// Sign records the current signatory's signature
func (s *Service) Sign(ctx context.Context, actor Actor, id string, req SignRequest) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cur, err := s.currentFor(doc, actor)
	if err != nil {
		return nil, err
	}

	sig, err := s.signatures.Capture(ctx, actor.UserID, req.Signature)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cur.Status = models.SignatorySigned
	cur.SignatureID = &sig.ID
	cur.Signature = sig
	cur.SignedAt = &now
	cur.Comment = req.Comment
	signer := displayName(cur.User)

	next := models.StatusInProgress
	if doc.AllSigned() {
		next = models.StatusValidated
	}
	var from models.DocumentStatus
	if doc.Status != next {
		if from, err = s.transition(doc, next); err != nil {
			return nil, err
		}
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	if from != "" {
		s.announce(ctx, doc, from)
	}

	if doc.CreatedBy != actor.UserID {
		s.notify(ctx, doc, models.NotifyDocumentSigned,
			"Document signed",
			fmt.Sprintf("%s signed %s", signer, doc.Reference),
			doc.CreatedBy)
	}
	if nextSigner := doc.CurrentSignatory(); nextSigner != nil {
		s.notify(ctx, doc, models.NotifySignatureRequested,
			"Signature requested",
			fmt.Sprintf("%s awaits your signature", doc.Reference),
			nextSigner.UserID)
	}

	if doc.Status == models.StatusValidated {
		return s.complete(ctx, doc)
	}
	return s.documents.Get(ctx, doc.ID)
}

// Reject lets the current signatory refuse; the document is cancelled
func (s *Service) Reject(ctx context.Context, actor Actor, id string, req ReasonRequest) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	doc, err := s.documents.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	cur, err := s.currentFor(doc, actor)
	if err != nil {
		return nil, err
	}

	cur.Status = models.SignatoryRejected
	cur.Comment = req.Reason
	signer := displayName(cur.User)

	from, err := s.transition(doc, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	doc.CancelReason = req.Reason
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.announce(ctx, doc, from)
	s.notify(ctx, doc, models.NotifyDocumentRejected,
		"Document rejected",
		fmt.Sprintf("%s rejected %s", signer, doc.Reference),
		doc.CreatedBy)
	return s.documents.Get(ctx, doc.ID)
}

// currentFor returns the signatory entry of actor when it is their turn
func (s *Service) currentFor(doc *models.Document, actor Actor) (*models.Signatory, error) {
	if doc.Status != models.StatusSubmitted && doc.Status != models.StatusInProgress {
		return nil, ierr.NewErrorf("document is %s", doc.Status).
			WithHintf("Document is %s and is not awaiting signatures", doc.Status).
			Mark(ierr.ErrInvalidOperation)
	}
	mine := doc.SignatoryFor(actor.UserID)
	if mine == nil {
		return nil, ierr.NewError("not a signatory").
			WithHint("You are not a signatory of this document").
			Mark(ierr.ErrPermissionDenied)
	}
	cur := doc.CurrentSignatory()
	if cur == nil || cur.UserID != actor.UserID {
		if mine.Status != models.SignatoryPending {
			return nil, ierr.NewError("already signed").
				WithHint("You have already signed this document").
				Mark(ierr.ErrInvalidOperation)
		}
		return nil, ierr.NewError("not your turn").
			WithHint("Waiting for an earlier signatory").
			Mark(ierr.ErrInvalidOperation)
	}
	return cur, nil
}

// complete seals a validated document. A failed seal leaves it VALIDATED for a retry.
func (s *Service) complete(ctx context.Context, doc *models.Document) (*models.Document, error) {
	if doc.Status != models.StatusValidated {
		from, err := s.transition(doc, models.StatusValidated)
		if err != nil {
			return nil, err
		}
		if err := s.documents.Update(ctx, doc); err != nil {
			return nil, err
		}
		s.announce(ctx, doc, from)
	}
	if err := s.seal(ctx, doc); err != nil {
		s.log.Error().Err(err).Str("document_id", doc.ID).Msg("failed to seal document")
	}
	return s.documents.Get(ctx, doc.ID)
}

// Cancel stops a document that has not reached a terminal status
func (s *Service) Cancel(ctx context.Context, actor Actor, id string, req ReasonRequest) (*models.Document, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, err
	}
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if !actor.Manager && doc.CreatedBy != actor.UserID {
		return nil, ierr.NewError("not the creator").
			WithHint("Only the creator can cancel this document").
			Mark(ierr.ErrPermissionDenied)
	}
	from, err := s.transition(doc, models.StatusCancelled)
	if err != nil {
		return nil, err
	}
	doc.CancelReason = req.Reason
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.announce(ctx, doc, from)

	recipients := lo.Without(doc.Participants(), actor.UserID)
	s.notify(ctx, doc, models.NotifyDocumentCancelled,
		"Document cancelled",
		fmt.Sprintf("%s was cancelled", doc.Reference),
		recipients...)
	return s.documents.Get(ctx, doc.ID)
}

// Activate puts a signed document into force
func (s *Service) Activate(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	from, err := s.transition(doc, models.StatusActive)
	if err != nil {
		return nil, err
	}
	days := 0
	if doc.DocumentType != nil {
		days = doc.DocumentType.ValidityDays
	}
	if days > 0 {
		until := doc.ActivatedAt.AddDate(0, 0, days)
		doc.ValidUntil = &until
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.announce(ctx, doc, from)
	s.notify(ctx, doc, models.NotifyDocumentActivated,
		"Document activated",
		fmt.Sprintf("%s is now active", doc.Reference),
		doc.CreatedBy)
	return s.documents.Get(ctx, doc.ID)
}

// MarkUsed consumes an active document. An overdue one is expired instead.
func (s *Service) MarkUsed(ctx context.Context, actor Actor, id string) (*models.Document, error) {
	doc, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if doc.Status == models.StatusActive && doc.ValidUntil != nil && doc.ValidUntil.Before(s.now()) {
		if err := s.expire(ctx, doc); err != nil {
			return nil, err
		}
		return nil, ierr.NewError("document expired").
			WithHint("Document has expired").
			Mark(ierr.ErrInvalidOperation)
	}
	from, err := s.transition(doc, models.StatusUsed)
	if err != nil {
		return nil, err
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, err
	}
	s.announce(ctx, doc, from)
	return s.documents.Get(ctx, doc.ID)
}

// ExpireDue expires every active document past its validity and returns how many
func (s *Service) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	expired := 0
	for {
		docs, err := s.documents.ListExpirable(ctx, now, expireBatch)
		if err != nil {
			return expired, err
		}
		for i := range docs {
			if err := s.expire(ctx, &docs[i]); err != nil {
				return expired, err
			}
			expired++
		}
		if len(docs) < expireBatch {
			return expired, nil
		}
	}
}

func (s *Service) expire(ctx context.Context, doc *models.Document) error {
	from, err := s.transition(doc, models.StatusExpired)
	if err != nil {
		return err
	}
	if err := s.documents.Update(ctx, doc); err != nil {
		return err
	}
	s.announce(ctx, doc, from)
	s.notify(ctx, doc, models.NotifyDocumentExpired,
		"Document expired",
		fmt.Sprintf("%s has expired", doc.Reference),
		doc.CreatedBy)
	return nil
}

// RunExpirySweep calls ExpireDue every interval until ctx is done
func (s *Service) RunExpirySweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.ExpireDue(ctx, s.now())
			if err != nil {
				s.log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.log.Info().Int("expired", n).Msg("expiry sweep")
			}
		}
	}
}
