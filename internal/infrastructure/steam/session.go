package steam

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // skip

// FileSessionStore хранит куки сессии на диске, по файлу на аккаунт.
type FileSessionStore struct {
	dir string
}

func NewFileSessionStore(dir string) *FileSessionStore {
	return &FileSessionStore{dir: dir}
}

type cookieSchema struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Domain  string    `json:"domain"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"`
}

func (s *FileSessionStore) path(username string) string {
	return filepath.Join(s.dir, username+"_cookies.json")
}

// Save сериализует куки аккаунта. Файл перезаписывается целиком.
func (s *FileSessionStore) Save(username string, cookies []*http.Cookie) error {
	schemas := make([]cookieSchema, 0, len(cookies))
	for _, c := range cookies {
		schemas = append(schemas, cookieSchema{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}

	data, err := json.Marshal(schemas)
	if err != nil {
		return fmt.Errorf("marshal cookies: %w", err)
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", s.dir, err)
	}

	if err := os.WriteFile(s.path(username), data, 0o600); err != nil {
		return fmt.Errorf("write session file: %w", err)
	}

	return nil
}

// Load возвращает сохранённые куки. Отсутствие файла — не ошибка:
// возвращается пустой срез, клиент проходит полный логин.
func (s *FileSessionStore) Load(username string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(s.path(username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}

	var schemas []cookieSchema
	if err := json.Unmarshal(data, &schemas); err != nil {
		return nil, fmt.Errorf("unmarshal cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(schemas))
	for _, c := range schemas {
		cookies = append(cookies, &http.Cookie{
			Name:    c.Name,
			Value:   c.Value,
			Domain:  c.Domain,
			Path:    c.Path,
			Expires: c.Expires,
		})
	}

	return cookies, nil
}
