package memory

import (
	"context"
	"sort"

	"github.com/kami-operation/kamiops/internal/models"
	"github.com/kami-operation/kamiops/internal/repository"
)

type categoryRepo struct{ s *Store }

func (r *categoryRepo) Create(_ context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.categories {
		if other.Code == c.Code {
			return alreadyExists("Category")
		}
	}
	if c.ID == "" {
		c.ID = models.NewID()
	}
	c.CreatedAt = r.s.tick()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	stored.Parent = nil
	r.s.categories[c.ID] = stored
	return nil
}

func (r *categoryRepo) Get(_ context.Context, id string) (*models.Category, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.categories[id]
	if !ok {
		return nil, notFound("Category")
	}
	if c.ParentID != nil {
		if p, ok := r.s.categories[*c.ParentID]; ok {
			c.Parent = &p
		}
	}
	return &c, nil
}

func (r *categoryRepo) List(_ context.Context, f repository.CategoryFilter) ([]models.Category, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Category
	for _, c := range r.s.categories {
		if f.Search != "" && !contains(c.Code, f.Search) && !contains(c.Name, f.Search) {
			continue
		}
		if f.ParentID != "" && (c.ParentID == nil || *c.ParentID != f.ParentID) {
			continue
		}
		if f.Active != nil && c.IsActive != *f.Active {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r *categoryRepo) Update(_ context.Context, c *models.Category) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[c.ID]; !ok {
		return notFound("Category")
	}
	for id, other := range r.s.categories {
		if id != c.ID && other.Code == c.Code {
			return alreadyExists("Category")
		}
	}
	c.UpdatedAt = r.s.tick()
	stored := *c
	stored.Parent = nil
	r.s.categories[c.ID] = stored
	return nil
}

func (r *categoryRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.categories[id]; !ok {
		return notFound("Category")
	}
	delete(r.s.categories, id)
	return nil
}

func (r *categoryRepo) CountChildren(_ context.Context, id string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, c := range r.s.categories {
		if c.ParentID != nil && *c.ParentID == id {
			n++
		}
	}
	return n, nil
}

type documentTypeRepo struct{ s *Store }

func (r *documentTypeRepo) withCategory(d models.DocumentType) models.DocumentType {
	if c, ok := r.s.categories[d.CategoryID]; ok {
		d.Category = &c
	}
	return d
}

func (r *documentTypeRepo) Create(_ context.Context, d *models.DocumentType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, other := range r.s.documentTypes {
		if other.Code == d.Code {
			return alreadyExists("Document type")
		}
	}
	if d.ID == "" {
		d.ID = models.NewID()
	}
	d.CreatedAt = r.s.tick()
	d.UpdatedAt = d.CreatedAt
	stored := *d
	stored.Category = nil
	r.s.documentTypes[d.ID] = stored
	return nil
}

func (r *documentTypeRepo) Get(_ context.Context, id string) (*models.DocumentType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, ok := r.s.documentTypes[id]
	if !ok {
		return nil, notFound("Document type")
	}
	d = r.withCategory(d)
	return &d, nil
}

func (r *documentTypeRepo) List(_ context.Context, f repository.DocumentTypeFilter) ([]models.DocumentType, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.DocumentType
	for _, d := range r.s.documentTypes {
		if f.Search != "" && !contains(d.Code, f.Search) && !contains(d.Name, f.Search) {
			continue
		}
		if f.CategoryID != "" && d.CategoryID != f.CategoryID {
			continue
		}
		if f.Active != nil && d.IsActive != *f.Active {
			continue
		}
		out = append(out, r.withCategory(d))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r *documentTypeRepo) Update(_ context.Context, d *models.DocumentType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documentTypes[d.ID]; !ok {
		return notFound("Document type")
	}
	for id, other := range r.s.documentTypes {
		if id != d.ID && other.Code == d.Code {
			return alreadyExists("Document type")
		}
	}
	d.UpdatedAt = r.s.tick()
	stored := *d
	stored.Category = nil
	r.s.documentTypes[d.ID] = stored
	return nil
}

func (r *documentTypeRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.documentTypes[id]; !ok {
		return notFound("Document type")
	}
	delete(r.s.documentTypes, id)
	return nil
}

func (r *documentTypeRepo) CountByCategory(_ context.Context, categoryID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, d := range r.s.documentTypes {
		if d.CategoryID == categoryID {
			n++
		}
	}
	return n, nil
}

type templateRepo struct{ s *Store }

func (r *templateRepo) Create(_ context.Context, t *models.PDFTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == "" {
		t.ID = models.NewID()
	}
	t.CreatedAt = r.s.tick()
	t.UpdatedAt = t.CreatedAt
	r.s.templates[t.ID] = cloneTemplate(*t)
	return nil
}

func (r *templateRepo) Get(_ context.Context, id string) (*models.PDFTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, notFound("Template")
	}
	t = cloneTemplate(t)
	return &t, nil
}

func (r *templateRepo) List(_ context.Context, f repository.TemplateFilter) ([]models.PDFTemplate, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.PDFTemplate
	for _, t := range r.s.templates {
		if f.Search != "" && !contains(t.Name, f.Search) {
			continue
		}
		if f.DocumentTypeID != "" && t.DocumentTypeID != nil && *t.DocumentTypeID != f.DocumentTypeID {
			continue
		}
		out = append(out, cloneTemplate(t))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return paginate(out, f.Pagination), int64(len(out)), nil
}

func (r *templateRepo) Update(_ context.Context, t *models.PDFTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[t.ID]; !ok {
		return notFound("Template")
	}
	t.UpdatedAt = r.s.tick()
	r.s.templates[t.ID] = cloneTemplate(*t)
	return nil
}

func (r *templateRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[id]; !ok {
		return notFound("Template")
	}
	delete(r.s.templates, id)
	return nil
}

func cloneTemplate(t models.PDFTemplate) models.PDFTemplate {
	sections := make([]models.Section, len(t.Sections))
	copy(sections, t.Sections)
	t.Sections = sections
	return t
}

