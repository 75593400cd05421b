package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/h2non/filetype"
)

// profileDir подкаталог для фотографий профиля.
const profileDir = "profiles"

var (
	// ErrUnsupportedType файл не является поддерживаемым изображением.
	ErrUnsupportedType = errors.New("storage: поддерживаются только изображения jpeg, png, webp, gif")
	// ErrTooLarge файл превышает лимит.
	ErrTooLarge = errors.New("storage: размер файла превышает лимит")
	// ErrEmpty пустой файл.
	ErrEmpty = errors.New("storage: файл пустой")
)

var allowedMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

// PhotoStorage отвечает за файловое хранилище изображений.
type PhotoStorage struct {
	rootPath       string
	maxUploadBytes int64
}

// NewPhotoStorage создаёт файловое хранилище.
func NewPhotoStorage(rootPath string, maxUploadMB int64) (*PhotoStorage, error) {
	if err := os.MkdirAll(filepath.Join(rootPath, profileDir), 0o755); err != nil {
		return nil, fmt.Errorf("storage: не удалось создать каталог %s: %w", rootPath, err)
	}

	return &PhotoStorage{
		rootPath:       rootPath,
		maxUploadBytes: maxUploadMB * 1024 * 1024,
	}, nil
}

// Root возвращает корневой каталог (для раздачи статики).
func (s *PhotoStorage) Root() string {
	return s.rootPath
}

// SaveProfileImage определяет тип по содержимому, сохраняет файл и возвращает
// относительный путь и MIME тип. Расширение берётся из реального типа, а не из имени.
func (s *PhotoStorage) SaveProfileImage(ctx context.Context, r io.Reader) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(261)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", "", fmt.Errorf("storage: не удалось прочитать файл: %w", err)
	}
	if len(head) == 0 {
		return "", "", ErrEmpty
	}

	kind, err := filetype.Match(head)
	if err != nil || kind == filetype.Unknown || !allowedMimeTypes[kind.MIME.Value] {
		return "", "", ErrUnsupportedType
	}

	fileName := uuid.NewString() + "." + kind.Extension
	targetPath := filepath.Join(s.rootPath, profileDir, fileName)
	tempPath := targetPath + ".tmp"

	f, err := os.Create(tempPath)
	if err != nil {
		return "", "", fmt.Errorf("storage: не удалось создать файл: %w", err)
	}
	defer f.Close()

	limitedReader := io.LimitedReader{R: br, N: s.maxUploadBytes + 1}
	written, err := io.Copy(f, &limitedReader)
	if err != nil {
		_ = os.Remove(tempPath)
		return "", "", fmt.Errorf("storage: ошибка записи файла: %w", err)
	}

	if written > s.maxUploadBytes {
		_ = os.Remove(tempPath)
		return "", "", fmt.Errorf("%w (%d байт)", ErrTooLarge, s.maxUploadBytes)
	}

	if err := f.Close(); err != nil {
		_ = os.Remove(tempPath)
		return "", "", fmt.Errorf("storage: ошибка закрытия файла: %w", err)
	}

	if err := os.Rename(tempPath, targetPath); err != nil {
		return "", "", fmt.Errorf("storage: не удалось переименовать файл: %w", err)
	}

	return filepath.ToSlash(filepath.Join(profileDir, fileName)), kind.MIME.Value, nil
}

// Delete удаляет файл из хранилища.
func (s *PhotoStorage) Delete(ctx context.Context, relativePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := filepath.Join(s.rootPath, filepath.Clean("/"+relativePath))
	if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("storage: не удалось удалить файл: %w", err)
	}
	return nil
}
