// Package storage keeps task attachments on HDFS. Attachment bytes live
// under /taskflow/attachments/<taskID>/<storedName>; the metadata (original
// name, mime type, size) stays on the task document in Mongo.
package storage

import (
	"fmt"
	"io"
	"log"
	"os"
	"path"

	"github.com/colinmarc/hdfs/v2"
)

const attachmentsRoot = "/taskflow/attachments"

type FileStorage struct {
	client *hdfs.Client
	logger *log.Logger
}

func New(logger *log.Logger) (*FileStorage, error) {
	hdfsURI := os.Getenv("HDFS_URI")
	if hdfsURI == "" {
		hdfsURI = "localhost:9000"
	}

	client, err := hdfs.New(hdfsURI)
	if err != nil {
		logger.Println("failed to connect to HDFS:", err)
		return nil, err
	}

	return &FileStorage{client: client, logger: logger}, nil
}

func (fs *FileStorage) Close() {
	fs.client.Close()
}

func (fs *FileStorage) CreateDirectories() error {
	err := fs.client.MkdirAll(attachmentsRoot, 0755)
	if err != nil {
		fs.logger.Println("failed to create attachment root:", err)
	}
	return err
}

// Save streams an attachment onto HDFS and returns its storage path.
func (fs *FileStorage) Save(taskID, storedName string, content io.Reader) (string, error) {
	dir := path.Join(attachmentsRoot, taskID)
	if err := fs.client.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	filePath := path.Join(dir, storedName)
	file, err := fs.client.Create(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment file: %w", err)
	}

	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := file.Close(); err != nil {
		return "", fmt.Errorf("failed to flush attachment: %w", err)
	}
	return filePath, nil
}

// Open returns a reader over a stored attachment.
func (fs *FileStorage) Open(filePath string) (io.ReadCloser, error) {
	return fs.client.Open(filePath)
}

// DeleteTaskFiles removes every attachment of a task; used by the task and
// project delete paths. Missing directories are fine.
func (fs *FileStorage) DeleteTaskFiles(taskID string) error {
	dir := path.Join(attachmentsRoot, taskID)
	err := fs.client.RemoveAll(dir)
	if err != nil && !os.IsNotExist(err) {
		fs.logger.Println("failed to remove attachments:", err)
		return err
	}
	return nil
}
