package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// webkitEpochOffset is the number of microseconds between 1601-01-01 and
// 1970-01-01, the two epochs Chromium and Unix count from.
const webkitEpochOffset = 11644473600000000

// ChromeDB reads a Chromium-family "History" SQLite file. The browser keeps
// the live file locked, so queries run against a private copy taken by
// Refresh. Normalizer refreshes the copy before every reload.
type ChromeDB struct {
	path string
	dir  string

	mu         sync.RWMutex
	db         *sql.DB
	copyPath   string
	searchStmt *sql.Stmt
	visitsStmt *sql.Stmt
}

// OpenChrome takes a first copy of the History database at path.
func OpenChrome(path string) (*ChromeDB, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	dir, err := os.MkdirTemp("", "timesheet-history-")
	if err != nil {
		return nil, fmt.Errorf("create history copy directory: %w", err)
	}

	c := &ChromeDB{path: path, dir: dir}
	if err := c.Refresh(context.Background()); err != nil {
		os.RemoveAll(dir)
		return nil, err
	}
	return c, nil
}

// Refresh copies the current History file, with its write-ahead log if
// present, and switches queries over to the new copy.
func (c *ChromeDB) Refresh(ctx context.Context) error {
	f, err := os.CreateTemp(c.dir, "History-*.db")
	if err != nil {
		return fmt.Errorf("copy history database: %w", err)
	}
	copyPath := f.Name()
	f.Close()

	if err := copyFile(c.path, copyPath); err != nil {
		os.Remove(copyPath)
		return fmt.Errorf("copy history database: %w", err)
	}
	if err := copyFile(c.path+"-wal", copyPath+"-wal"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		removeCopy(copyPath)
		return fmt.Errorf("copy history journal: %w", err)
	}

	db, err := sql.Open("sqlite3", copyPath)
	if err != nil {
		removeCopy(copyPath)
		return fmt.Errorf("open history database: %w", err)
	}
	next := &ChromeDB{db: db}
	if err := next.prepareStatements(); err != nil {
		next.closeDB()
		removeCopy(copyPath)
		return fmt.Errorf("prepare history statements: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		next.closeDB()
		removeCopy(copyPath)
		return fmt.Errorf("open history database: %w", err)
	}

	c.mu.Lock()
	oldPath := c.copyPath
	if c.db != nil {
		c.closeDB()
	}
	c.db, c.searchStmt, c.visitsStmt, c.copyPath = db, next.searchStmt, next.visitsStmt, copyPath
	c.mu.Unlock()

	if oldPath != "" {
		removeCopy(oldPath)
	}
	return nil
}

func (c *ChromeDB) prepareStatements() error {
	var err error

	c.searchStmt, err = c.db.Prepare(`
		SELECT url, title, last_visit_time, visit_count
		FROM urls
		WHERE last_visit_time >= ? AND last_visit_time <= ? AND hidden = 0
		ORDER BY last_visit_time DESC
		LIMIT ?
	`)
	if err != nil {
		return err
	}

	c.visitsStmt, err = c.db.Prepare(`
		SELECT v.visit_time
		FROM visits v
		JOIN urls u ON u.id = v.url
		WHERE u.url = ?
		ORDER BY v.visit_time ASC
	`)
	return err
}

// Search returns URLs last visited within the query window.
func (c *ChromeDB) Search(ctx context.Context, q Query) ([]Item, error) {
	limit := q.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	end := q.EndTime
	if end.IsZero() {
		end = time.Now()
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.searchStmt.QueryContext(ctx, toWebkit(q.StartTime), toWebkit(end), limit)
	if err != nil {
		return nil, fmt.Errorf("query urls: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var title sql.NullString
		var lastVisit int64
		if err := rows.Scan(&it.URL, &title, &lastVisit, &it.VisitCount); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		it.Title = title.String
		it.LastVisitTime = fromWebkit(lastVisit)
		items = append(items, it)
	}
	return items, rows.Err()
}

// Visits returns every recorded visit to rawURL in ascending order.
func (c *ChromeDB) Visits(ctx context.Context, rawURL string) ([]Visit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	rows, err := c.visitsStmt.QueryContext(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("query visits: %w", err)
	}
	defer rows.Close()

	var visits []Visit
	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("scan visit: %w", err)
		}
		visits = append(visits, Visit{VisitTime: fromWebkit(ts)})
	}
	return visits, rows.Err()
}

// Close releases the database handle and removes the copies.
func (c *ChromeDB) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.closeDB()
	c.db = nil
	if rmErr := os.RemoveAll(c.dir); err == nil {
		err = rmErr
	}
	return err
}

func (c *ChromeDB) closeDB() error {
	for _, stmt := range []*sql.Stmt{c.searchStmt, c.visitsStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func removeCopy(path string) {
	for _, p := range []string{path, path + "-wal", path + "-shm", path + "-journal"} {
		os.Remove(p)
	}
}

func toWebkit(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMicro() + webkitEpochOffset
}

func fromWebkit(us int64) time.Time {
	return time.UnixMicro(us - webkitEpochOffset)
}
