package dataset

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"foodieqa/internal/model"
)

// Image is the picture attached to one question
type Image struct {
	Path     string
	MIMEType string
	Data     []byte
}

// ImagePath resolves the question image inside dataDir. The web copy is used
// when useWeb is set and the record has one.
func ImagePath(dataDir string, q *model.Question, useWeb bool) (string, error) {
	name := q.Image.File
	if useWeb && q.Image.WebFile != "" {
		name = q.Image.WebFile
	}
	if name == "" {
		return "", fmt.Errorf("question %s has no image", q.ID)
	}
	return filepath.Join(dataDir, filepath.FromSlash(name)), nil
}

// LoadImage reads the question image
func LoadImage(dataDir string, q *model.Question, useWeb bool) (*Image, error) {
	path, err := ImagePath(dataDir, q, useWeb)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", path, err)
	}
	return &Image{Path: path, MIMEType: mimeType(path, data), Data: data}, nil
}

func mimeType(path string, data []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	}
	if ct := http.DetectContentType(data); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return "image/jpeg"
}

// ImageDir loads question images from a data directory
type ImageDir string

// Load reads the image of q under the directory
func (d ImageDir) Load(q *model.Question, useWeb bool) (*Image, error) {
	return LoadImage(string(d), q, useWeb)
}
