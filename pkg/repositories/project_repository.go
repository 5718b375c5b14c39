package repositories

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/scorecard/pkg/apperrors"
	"github.com/ekaya-inc/scorecard/pkg/database"
	"github.com/ekaya-inc/scorecard/pkg/models"
)

// ProjectRepository defines data access for projects and their links and URLs.
type ProjectRepository interface {
	Create(ctx context.Context, project *models.Project) error
	Get(ctx context.Context, id int64) (*models.Project, error)
	List(ctx context.Context, filter *models.ProjectListFilter) (*models.ProjectPage, error)
	ListIDs(ctx context.Context) ([]int64, error)
	Update(ctx context.Context, project *models.Project, modifiedBy string) error
	Delete(ctx context.Context, id int64) error
	GetLinks(ctx context.Context, projectID int64) ([]*models.ProjectLink, error)
	SaveLink(ctx context.Context, projectID int64, link *models.ProjectLink) error
	DeleteLink(ctx context.Context, projectID int64, title string) error
	GetURLs(ctx context.Context, projectID int64) ([]*models.ProjectURL, error)
	SaveURL(ctx context.Context, projectID int64, u *models.ProjectURL) error
	DeleteURL(ctx context.Context, projectID int64, environment string) error
}

type projectRepository struct {
	db *database.DB
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(db *database.DB) ProjectRepository {
	return &projectRepository{db: db}
}

const projectColumns = `
		p.id, p.project_type_id, pt.name, p.name, p.slug, p.description,
		p.environments, p.archived, p.created_at, p.created_by,
		p.last_modified_at, p.last_modified_by,
		project_score(p.id)::float8 AS project_score`

func scanProject(row pgx.Row) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.ProjectTypeID,
		&p.ProjectType,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Environments,
		&p.Archived,
		&p.CreatedAt,
		&p.CreatedBy,
		&p.LastModifiedAt,
		&p.LastModifiedBy,
		&p.ProjectScore,
	)
	if err != nil {
		return nil, err
	}
	if p.Environments == nil {
		p.Environments = []string{}
	}
	return &p, nil
}

func (r *projectRepository) Create(ctx context.Context, project *models.Project) error {
	if project.Environments == nil {
		project.Environments = []string{}
	}

	query := `
		INSERT INTO projects (project_type_id, name, slug, description, environments, archived, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.Querier(ctx).QueryRow(ctx, query,
		project.ProjectTypeID,
		project.Name,
		project.Slug,
		project.Description,
		project.Environments,
		project.Archived,
		project.CreatedBy,
	).Scan(&project.ID, &project.CreatedAt)
	if err != nil {
		return mapWriteError(err, "project")
	}
	return nil
}

// Get retrieves a project with its type name and storage-computed score.
func (r *projectRepository) Get(ctx context.Context, id int64) (*models.Project, error) {
	query := `SELECT` + projectColumns + `
		  FROM projects AS p
		  JOIN project_types AS pt ON pt.id = p.project_type_id
		 WHERE p.id = $1`

	p, err := scanProject(r.db.Querier(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return p, nil
}

func (r *projectRepository) List(ctx context.Context, filter *models.ProjectListFilter) (*models.ProjectPage, error) {
	q, err := newProjectListQuery(filter)
	if err != nil {
		return nil, err
	}

	db := r.db.Querier(ctx)
	page := &models.ProjectPage{Data: []*models.Project{}}
	if err := db.QueryRow(ctx, q.countSQL(), q.args...).Scan(&page.Rows); err != nil {
		return nil, fmt.Errorf("failed to count projects: %w", err)
	}

	rows, err := db.Query(ctx, q.selectSQL(), q.pageArgs()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		page.Data = append(page.Data, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate projects: %w", err)
	}
	return page, nil
}

func (r *projectRepository) ListIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Querier(ctx).Query(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list project ids: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("failed to scan project ids: %w", err)
	}
	return ids, nil
}

// Update writes the editable columns of project and stamps the modification.
func (r *projectRepository) Update(ctx context.Context, project *models.Project, modifiedBy string) error {
	if project.Environments == nil {
		project.Environments = []string{}
	}

	query := `
		UPDATE projects
		   SET project_type_id = $2,
		       name = $3,
		       slug = $4,
		       description = $5,
		       environments = $6,
		       archived = $7,
		       last_modified_at = CURRENT_TIMESTAMP,
		       last_modified_by = $8
		 WHERE id = $1`

	tag, err := r.db.Querier(ctx).Exec(ctx, query,
		project.ID,
		project.ProjectTypeID,
		project.Name,
		project.Slug,
		project.Description,
		project.Environments,
		project.Archived,
		modifiedBy,
	)
	if err != nil {
		return mapWriteError(err, "project")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// Delete removes a project. Facts, links, URLs and identifiers cascade.
func (r *projectRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Querier(ctx).Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (r *projectRepository) GetLinks(ctx context.Context, projectID int64) ([]*models.ProjectLink, error) {
	query := `
		SELECT title, icon_class, url
		  FROM project_links
		 WHERE project_id = $1
		 ORDER BY title`

	rows, err := r.db.Querier(ctx).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project links: %w", err)
	}
	defer rows.Close()

	links := []*models.ProjectLink{}
	for rows.Next() {
		var link models.ProjectLink
		if err := rows.Scan(&link.Title, &link.IconClass, &link.URL); err != nil {
			return nil, fmt.Errorf("failed to scan project link: %w", err)
		}
		links = append(links, &link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project links: %w", err)
	}
	return links, nil
}

// SaveLink creates or replaces the link with the same title.
func (r *projectRepository) SaveLink(ctx context.Context, projectID int64, link *models.ProjectLink) error {
	query := `
		INSERT INTO project_links (project_id, title, icon_class, url)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, title) DO UPDATE
		SET icon_class = EXCLUDED.icon_class,
		    url = EXCLUDED.url`

	if _, err := r.db.Querier(ctx).Exec(ctx, query, projectID, link.Title, link.IconClass, link.URL); err != nil {
		return mapWriteError(err, "project link")
	}
	return nil
}

func (r *projectRepository) DeleteLink(ctx context.Context, projectID int64, title string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`DELETE FROM project_links WHERE project_id = $1 AND title = $2`, projectID, title)
	if err != nil {
		return fmt.Errorf("failed to delete project link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d has no link %q", apperrors.ErrNotFound, projectID, title)
	}
	return nil
}

func (r *projectRepository) GetURLs(ctx context.Context, projectID int64) ([]*models.ProjectURL, error) {
	query := `
		SELECT environment, url
		  FROM project_urls
		 WHERE project_id = $1
		 ORDER BY environment`

	rows, err := r.db.Querier(ctx).Query(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to get project urls: %w", err)
	}
	defer rows.Close()

	urls := []*models.ProjectURL{}
	for rows.Next() {
		var u models.ProjectURL
		if err := rows.Scan(&u.Environment, &u.URL); err != nil {
			return nil, fmt.Errorf("failed to scan project url: %w", err)
		}
		urls = append(urls, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate project urls: %w", err)
	}
	return urls, nil
}

// SaveURL creates or replaces the URL of one environment.
func (r *projectRepository) SaveURL(ctx context.Context, projectID int64, u *models.ProjectURL) error {
	query := `
		INSERT INTO project_urls (project_id, environment, url)
		VALUES ($1, $2, $3)
		ON CONFLICT (project_id, environment) DO UPDATE
		SET url = EXCLUDED.url`

	if _, err := r.db.Querier(ctx).Exec(ctx, query, projectID, u.Environment, u.URL); err != nil {
		return mapWriteError(err, "project url")
	}
	return nil
}

func (r *projectRepository) DeleteURL(ctx context.Context, projectID int64, environment string) error {
	tag, err := r.db.Querier(ctx).Exec(ctx,
		`DELETE FROM project_urls WHERE project_id = $1 AND environment = $2`, projectID, environment)
	if err != nil {
		return fmt.Errorf("failed to delete project url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: project %d has no %q url", apperrors.ErrNotFound, projectID, environment)
	}
	return nil
}

// projectSortColumns maps the sortable fields of a listing to SQL expressions.
var projectSortColumns = map[string]string{
	"name":          "p.name",
	"project_score": "project_score",
	"project_type":  "pt.name",
}

// projectListQuery builds the SQL of one project listing request.
type projectListQuery struct {
	where   []string
	args    []any
	orderBy []string
	limit   int
	offset  int
}

func newProjectListQuery(filter *models.ProjectListFilter) (*projectListQuery, error) {
	if filter == nil {
		filter = &models.ProjectListFilter{}
	}
	q := &projectListQuery{limit: filter.Limit, offset: filter.Offset}

	if !filter.IncludeArchived {
		q.where = append(q.where, "NOT p.archived")
	}
	if filter.Name != "" {
		q.where = append(q.where, "p.name ILIKE "+q.arg("%"+escapeLike(filter.Name)+"%"))
	}
	if filter.ProjectTypeID != 0 {
		q.where = append(q.where, "p.project_type_id = "+q.arg(filter.ProjectTypeID))
	}

	for _, s := range filter.Sort {
		column, ok := projectSortColumns[s.Column]
		if !ok {
			return nil, fmt.Errorf("%w: cannot sort by %q", apperrors.ErrValidation, s.Column)
		}
		direction := "ASC"
		if s.Descending {
			direction = "DESC"
		}
		q.orderBy = append(q.orderBy, column+" "+direction)
	}
	// Stable paging regardless of the requested order.
	q.orderBy = append(q.orderBy, "p.id ASC")

	return q, nil
}

func (q *projectListQuery) arg(v any) string {
	q.args = append(q.args, v)
	return "$" + strconv.Itoa(len(q.args))
}

func (q *projectListQuery) whereSQL() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func (q *projectListQuery) countSQL() string {
	return `SELECT count(*) FROM projects AS p` + q.whereSQL()
}

func (q *projectListQuery) selectSQL() string {
	var b strings.Builder
	b.WriteString(`SELECT`)
	b.WriteString(projectColumns)
	b.WriteString(`
		  FROM projects AS p
		  JOIN project_types AS pt ON pt.id = p.project_type_id`)
	b.WriteString(q.whereSQL())
	b.WriteString(" ORDER BY ")
	b.WriteString(strings.Join(q.orderBy, ", "))

	n := len(q.args)
	if q.limit > 0 {
		n++
		b.WriteString(" LIMIT $" + strconv.Itoa(n))
	}
	if q.offset > 0 {
		n++
		b.WriteString(" OFFSET $" + strconv.Itoa(n))
	}
	return b.String()
}

// pageArgs returns the filter arguments followed by the limit and offset
// placeholders used by selectSQL.
func (q *projectListQuery) pageArgs() []any {
	args := append([]any{}, q.args...)
	if q.limit > 0 {
		args = append(args, q.limit)
	}
	if q.offset > 0 {
		args = append(args, q.offset)
	}
	return args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
