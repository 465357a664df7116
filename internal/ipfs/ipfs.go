// Package ipfs is the upload proxy toward web3.storage. The upstream pin
// call is mocked: uploads are validated and answered with a derived CID, no
// bytes leave the process.
package ipfs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
	".pdf": true, ".txt": true, ".json": true, ".csv": true,
	".mp4": true, ".webm": true,
}

var blockedExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".sh": true, ".bat": true,
	".cmd": true, ".js": true, ".py": true, ".rb": true, ".php": true,
}

// UploadResult describes a (mock) pinned upload.
type UploadResult struct {
	CID       string    `json:"cid"`
	URL       string    `json:"url"`
	Size      int64     `json:"size"`
	Timestamp time.Time `json:"timestamp"`
	Mock      bool      `json:"mock"`
}

// Proxy validates uploads and issues mock CIDs.
type Proxy struct {
	maxFileSize int64
}

// NewProxy creates an upload proxy with the given size cap in megabytes.
func NewProxy(maxUploadMB int) *Proxy {
	return &Proxy{maxFileSize: int64(maxUploadMB) * 1024 * 1024}
}

// MaxFileSize returns the upload size cap in bytes.
func (p *Proxy) MaxFileSize() int64 {
	return p.maxFileSize
}

// ValidateFile checks an upload's name and size before it is accepted.
func (p *Proxy) ValidateFile(filename string, size int64) error {
	if size > p.maxFileSize {
		return fmt.Errorf("file too large (max %dMB)", p.maxFileSize/1024/1024)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if blockedExtensions[ext] {
		return fmt.Errorf("blocked file type: %s", ext)
	}
	if !allowedExtensions[ext] {
		return fmt.Errorf("file type not allowed: %s", ext)
	}
	return nil
}

// Upload produces a deterministic mock CID from the file content.
func (p *Proxy) Upload(filename string, content []byte) *UploadResult {
	sum := sha256.Sum256(content)
	cid := "bafybeif" + hex.EncodeToString(sum[:])[:46]

	return &UploadResult{
		CID:       cid,
		URL:       "https://ipfs.io/ipfs/" + cid,
		Size:      int64(len(content)),
		Timestamp: time.Now().UTC(),
		Mock:      true,
	}
}
