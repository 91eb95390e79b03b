package memory

import (
	"context"
	"sort"
	"time"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

type documentRepo struct{ s *Store }

// hydrate attaches relations the gorm repository preloads
func (r *documentRepo) hydrate(d models.Document) models.Document {
	if dt, ok := r.s.documentTypes[d.DocumentTypeID]; ok {
		d.DocumentType = &dt
	}
	if u, ok := r.s.users[d.CreatedBy]; ok {
		d.Creator = &u
	}
	d.Signatories = nil
	for _, sg := range r.s.signatories {
		if sg.DocumentID != d.ID {
			continue
		}
		if u, ok := r.s.users[sg.UserID]; ok {
			sg.User = &u
		}
		if sg.SignatureID != nil {
			if sig, ok := r.s.signatures[*sg.SignatureID]; ok {
				sg.Signature = &sig
			}
		}
		d.Signatories = append(d.Signatories, sg)
	}
	models.SortSignatories(d.Signatories)
	d.Data = cloneData(d.Data)
	return d
}

func cloneData(in models.JSONB) models.JSONB {
	if in == nil {
		return nil
	}
	out := make(models.JSONB, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (r *documentRepo) storeDoc(d models.Document) {
	d.DocumentType = nil
	d.Creator = nil
	d.Signatories = nil
	d.Data = cloneData(d.Data)
	r.s.documents[d.ID] = d
}

func (r *documentRepo) Create(_ context.Context, d *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.documents {
		if other.Reference == d.Reference {
			return alreadyExists("Document")
		}
	}
	if d.ID == "" {
		d.ID = models.NewID()
	}
	d.CreatedAt = r.s.tick()
	d.UpdatedAt = d.CreatedAt
	for i := range d.Signatories {
		r.createSignatory(d.ID, &d.Signatories[i])
	}
	r.storeDoc(*d)
	return nil
}

func (r *documentRepo) createSignatory(documentID string, sg *models.Signatory) {
	if sg.ID == "" {
		sg.ID = models.NewID()
	}
	sg.DocumentID = documentID
	sg.CreatedAt = r.s.tick()
	sg.UpdatedAt = sg.CreatedAt
	stored := *sg
	stored.User = nil
	stored.Signature = nil
	r.s.signatories[sg.ID] = stored
}

func (r *documentRepo) Get(_ context.Context, id string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documents[id]
	if !ok {
		return nil, notFound("Document")
	}
	d = r.hydrate(d)
	return &d, nil
}

func (r *documentRepo) GetByVerificationCode(_ context.Context, code string) (*models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.documents {
		if d.VerificationCode != nil && *d.VerificationCode == code {
			d = r.hydrate(d)
			return &d, nil
		}
	}
	return nil, notFound("Document")
}

func (r *documentRepo) match(d models.Document, f repository.DocumentFilter) bool {
	if f.Search != "" && !contains(d.Reference, f.Search) && !contains(d.Title, f.Search) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if d.Status == st {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.DocumentTypeID != "" && d.DocumentTypeID != f.DocumentTypeID {
		return false
	}
	if f.CreatedBy != "" && d.CreatedBy != f.CreatedBy {
		return false
	}
	if f.VisibleTo != "" && d.CreatedBy != f.VisibleTo && d.SignatoryFor(f.VisibleTo) == nil {
		return false
	}
	if f.AwaitingUser != "" {
		if d.Status != models.StatusSubmitted && d.Status != models.StatusInProgress {
			return false
		}
		cur := d.CurrentSignatory()
		if cur == nil || cur.UserID != f.AwaitingUser {
			return false
		}
	}
	return true
}

func (r *documentRepo) filtered(f repository.DocumentFilter) []models.Document {
	var out []models.Document
	for _, d := range r.s.documents {
		d = r.hydrate(d)
		if r.match(d, f) {
			out = append(out, d)
		}
	}
	sortByCreated(out, func(d models.Document) time.Time { return d.CreatedAt }, true)
	return out
}

func (r *documentRepo) List(_ context.Context, f repository.DocumentFilter) ([]models.Document, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.filtered(f)
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r *documentRepo) Update(_ context.Context, d *models.Document) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[d.ID]; !ok {
		return notFound("Document")
	}
	for id, other := range r.s.documents {
		if id == d.ID {
			continue
		}
		if other.Reference == d.Reference {
			return alreadyExists("Document")
		}
		if d.VerificationCode != nil && other.VerificationCode != nil && *other.VerificationCode == *d.VerificationCode {
			return alreadyExists("Document")
		}
	}
	d.UpdatedAt = r.s.tick()
	for _, sg := range d.Signatories {
		stored, ok := r.s.signatories[sg.ID]
		if !ok {
			continue
		}
		stored.Status = sg.Status
		stored.SignatureID = sg.SignatureID
		stored.SignedAt = sg.SignedAt
		stored.Comment = sg.Comment
		stored.UpdatedAt = d.UpdatedAt
		r.s.signatories[sg.ID] = stored
	}
	r.storeDoc(*d)
	return nil
}

func (r *documentRepo) ReplaceSignatories(_ context.Context, documentID string, list []models.Signatory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, sg := range r.s.signatories {
		if sg.DocumentID == documentID {
			delete(r.s.signatories, id)
		}
	}
	for i := range list {
		list[i].ID = ""
		r.createSignatory(documentID, &list[i])
	}
	return nil
}

func (r *documentRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documents[id]; !ok {
		return notFound("Document")
	}
	delete(r.s.documents, id)
	for sid, sg := range r.s.signatories {
		if sg.DocumentID == id {
			delete(r.s.signatories, sid)
		}
	}
	return nil
}

func (r *documentRepo) ListExpirable(_ context.Context, now time.Time, limit int) ([]models.Document, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Document
	for _, d := range r.s.documents {
		if d.Status == models.StatusActive && d.ValidUntil != nil && d.ValidUntil.Before(now) {
			out = append(out, r.hydrate(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ValidUntil.Before(*out[j].ValidUntil) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *documentRepo) CountByDocumentType(_ context.Context, documentTypeID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, d := range r.s.documents {
		if d.DocumentTypeID == documentTypeID {
			n++
		}
	}
	return n, nil
}

func (r *documentRepo) countBy(visibleTo string, key func(models.Document) (string, string), keep func(models.Document) bool) []repository.StatusCount {
	counts := map[string]*repository.StatusCount{}
	var order []string
	for _, d := range r.filtered(repository.DocumentFilter{VisibleTo: visibleTo}) {
		if keep != nil && !keep(d) {
			continue
		}
		k, label := key(d)
		c, ok := counts[k]
		if !ok {
			c = &repository.StatusCount{Key: k, Label: label}
			counts[k] = c
			order = append(order, k)
		}
		c.Count++
	}
	sort.Strings(order)
	out := make([]repository.StatusCount, 0, len(order))
	for _, k := range order {
		out = append(out, *counts[k])
	}
	return out
}

func (r *documentRepo) CountByStatus(_ context.Context, visibleTo string) ([]repository.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.countBy(visibleTo, func(d models.Document) (string, string) { return string(d.Status), "" }, nil), nil
}

func (r *documentRepo) CountByType(_ context.Context, visibleTo string) ([]repository.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := r.countBy(visibleTo, func(d models.Document) (string, string) {
		if d.DocumentType == nil {
			return d.DocumentTypeID, ""
		}
		return d.DocumentType.Code, d.DocumentType.Name
	}, nil)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out, nil
}

func (r *documentRepo) CountByMonth(_ context.Context, visibleTo string, since time.Time) ([]repository.StatusCount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.countBy(visibleTo,
		func(d models.Document) (string, string) { return d.CreatedAt.UTC().Format("2006-01"), "" },
		func(d models.Document) bool { return !d.CreatedAt.Before(since) },
	), nil
}
