package units

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	"github.com/canopyhq/canopy/internal"
	"github.com/canopyhq/canopy/internal/users"
	"github.com/canopyhq/canopy/pkg/mode"
	"github.com/canopyhq/canopy/pkg/sanitizer"
	"github.com/canopyhq/canopy/pkg/storage"
)

const (
	folderContentType = "application/x-directory"
	sniffLen          = 512
)

// fileManager works on the signed-in user's folder, "users/<id>".
type fileManager struct {
	base
	store  storage.Storage
	root   string
	expiry time.Duration
}

func registerFileManager(reg *mode.Registry[internal.Context], deps Deps) error {
	return mode.Register(reg, mode.Spec[internal.Context, *fileManager]{
		Package:     "filemanager",
		Kind:        mode.KindFileManager,
		Description: "Per-user file storage",
		New: func() *fileManager {
			return &fileManager{base: base{users: deps.Users}, expiry: deps.URLExpiry}
		},
		Methods: map[string]mode.Method[internal.Context, *fileManager]{
			"default-view": (*fileManager).list,
			"add-folder":   (*fileManager).addFolder,
			"upload":       (*fileManager).upload,
			"download":     (*fileManager).download,
			"rename":       (*fileManager).rename,
			"remove":       (*fileManager).remove,
		},
	})
}

func (f *fileManager) Init(c internal.Context) error {
	if err := f.base.Init(c); err != nil {
		return err
	}
	if err := f.signedIn(); err != nil {
		return err
	}
	s, err := c.Storage()
	if err != nil {
		return internal.ErrServiceUnavailable("file storage is not configured", internal.WithError(err))
	}
	f.store = s
	f.root = "users/" + strconv.FormatInt(f.me.ID, 10)
	return nil
}

// key resolves a path relative to the user's folder.
func (f *fileManager) key(rel string) (string, error) {
	key, err := storage.Join(f.root, strings.Trim(rel, "/"))
	if err != nil {
		return "", internal.ErrBadRequest("invalid path", internal.WithError(err))
	}
	return key, nil
}

// cleanName normalizes a single path segment.
func cleanName(name string) (string, error) {
	name = norm.NFC.String(sanitizer.Text(name))
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return "", internal.ErrBadRequest("invalid name", internal.WithErrorCode("invalid-name"))
	}
	return name, nil
}

func (f *fileManager) relative(obj storage.Object) storage.Object {
	obj.Key = strings.TrimPrefix(obj.Key, f.root+"/")
	return obj
}

type folderView struct {
	Dir   string           `json:"dir"`
	Items []storage.Object `json:"items"`
}

// list shows a folder. The folder comes from the first argument or the
// "dir" field.
func (f *fileManager) list(c internal.Context, args ...string) error {
	if err := f.require(users.PermFileRead); err != nil {
		return err
	}
	dir, _ := internal.Arg[string](args, 0)
	if dir == "" {
		dir = c.Form("dir")
	}
	key, err := f.key(dir)
	if err != nil {
		return err
	}
	objs, err := f.store.List(c, key)
	if err != nil {
		return fileError(err)
	}
	items := make([]storage.Object, 0, len(objs))
	for _, obj := range objs {
		items = append(items, f.relative(obj))
	}
	return c.JSON(http.StatusOK, folderView{Dir: strings.Trim(dir, "/"), Items: items})
}

func (f *fileManager) addFolder(c internal.Context, args ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := f.require(users.PermFileWrite); err != nil {
		return err
	}
	name, _ := internal.Arg[string](args, 0)
	if name == "" {
		name = c.Form("name")
	}
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	key, err := f.key(c.Form("dir") + "/" + name)
	if err != nil {
		return err
	}
	obj, err := f.store.Put(c, storage.FolderKey(key), bytes.NewReader(nil), 0, folderContentType)
	if err != nil {
		return fileError(err)
	}
	obj.Folder = true
	return c.JSON(http.StatusCreated, f.relative(*obj))
}

// upload stores the multipart "file" field in the "dir" folder.
func (f *fileManager) upload(c internal.Context, _ ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := f.require(users.PermFileWrite); err != nil {
		return err
	}
	file, header, err := c.FormFile("file")
	if err != nil {
		return internal.ErrBadRequest("file is required", internal.WithErrorCode("file-required"), internal.WithError(err))
	}
	defer file.Close()

	if header.Size == 0 {
		return fileError(storage.ErrEmptyFile)
	}
	name, err := cleanName(header.Filename)
	if err != nil {
		return err
	}
	key, err := f.key(c.Form("dir") + "/" + name)
	if err != nil {
		return err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return internal.ErrBadRequest("unreadable upload", internal.WithError(err))
	}
	head = head[:n]
	body := io.MultiReader(bytes.NewReader(head), file)

	obj, err := f.store.Put(c, key, body, header.Size, storage.DetectContentType(name, head))
	if err != nil {
		return fileError(err)
	}
	c.LogInfo("file uploaded", "key", key, "size", obj.Size)
	return c.JSON(http.StatusCreated, f.relative(*obj))
}

// download redirects to a short-lived link to the file.
func (f *fileManager) download(c internal.Context, args ...string) error {
	if err := f.require(users.PermFileRead); err != nil {
		return err
	}
	rel, _ := internal.Arg[string](args, 0)
	if rel == "" {
		rel = c.Form("key")
	}
	key, err := f.key(rel)
	if err != nil {
		return err
	}
	if _, err := f.store.Head(c, key); err != nil {
		return fileError(err)
	}
	url, err := f.store.URL(c, key, f.expiry, storage.BaseName(key))
	if err != nil {
		return fileError(err)
	}
	return c.Redirect(http.StatusFound, url)
}

// rename moves a file within the user's folder.
func (f *fileManager) rename(c internal.Context, args ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := f.require(users.PermFileWrite); err != nil {
		return err
	}
	from, _ := internal.Arg[string](args, 0)
	to, _ := internal.Arg[string](args, 1)
	if from == "" {
		from, to = c.Form("from"), c.Form("to")
	}
	if strings.HasSuffix(from, "/") {
		return internal.ErrBadRequest("folders cannot be renamed", internal.WithErrorCode("rename-folder"))
	}

	name, err := cleanName(storage.BaseName(to))
	if err != nil {
		return err
	}
	src, err := f.key(from)
	if err != nil {
		return err
	}
	dir := ""
	if i := strings.LastIndex(strings.Trim(to, "/"), "/"); i >= 0 {
		dir = strings.Trim(to, "/")[:i]
	}
	dst, err := f.key(dir + "/" + name)
	if err != nil {
		return err
	}
	if src == dst {
		return c.NoContent(http.StatusNoContent)
	}

	if _, err := f.store.Head(c, dst); err == nil {
		return internal.ErrConflict("target exists", internal.WithErrorCode("file-exists"))
	}
	if err := f.store.Copy(c, src, dst); err != nil {
		return fileError(err)
	}
	if err := f.store.Delete(c, src); err != nil {
		return fileError(err)
	}
	obj, err := f.store.Head(c, dst)
	if err != nil {
		return fileError(err)
	}
	return c.JSON(http.StatusOK, f.relative(*obj))
}

type removedFiles struct {
	Removed int `json:"removed"`
}

// remove deletes a file, or a folder ending in "/" with its contents.
func (f *fileManager) remove(c internal.Context, args ...string) error {
	if err := requirePost(c); err != nil {
		return err
	}
	if err := f.require(users.PermFileRemove); err != nil {
		return err
	}
	rel, _ := internal.Arg[string](args, 0)
	if rel == "" {
		rel = c.Form("key")
	}
	key, err := f.key(rel)
	if err != nil {
		return err
	}
	if key == f.root {
		return internal.ErrBadRequest("cannot remove the home folder", internal.WithErrorCode("remove-home"))
	}

	if strings.HasSuffix(rel, "/") {
		n, err := f.store.DeletePrefix(c, storage.FolderKey(key))
		if err != nil {
			return fileError(err)
		}
		return c.JSON(http.StatusOK, removedFiles{Removed: n})
	}
	if _, err := f.store.Head(c, key); err != nil {
		return fileError(err)
	}
	if err := f.store.Delete(c, key); err != nil {
		return fileError(err)
	}
	return c.JSON(http.StatusOK, removedFiles{Removed: 1})
}

func fileError(err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return internal.ErrNotFound("file not found", internal.WithError(err))
	case errors.Is(err, storage.ErrInvalidKey), errors.Is(err, storage.ErrEmptyFile):
		return internal.ErrBadRequest(err.Error(), internal.WithError(err))
	case errors.Is(err, storage.ErrFileTooLarge):
		return internal.NewHTTPError(http.StatusRequestEntityTooLarge, "file is too large", internal.WithError(err))
	case errors.Is(err, storage.ErrAccessDenied):
		return internal.ErrForbidden("storage access denied", internal.WithError(err))
	default:
		return err
	}
}
