package skills

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const (
	// ManifestFile 技能元数据文件名
	ManifestFile = "SKILL.json"
	// ArtifactFile 技能正文文件名
	ArtifactFile = "ARTIFACT.md"

	stagingPrefix = ".staging-"
)

// manifest SKILL.json 的内容
type manifest struct {
	Skill
	Files []string `json:"files"`
}

// FileStore 以目录存放技能：<root>/<skill_id>/SKILL.json + ARTIFACT.md
type FileStore struct {
	root   string
	logger *zap.Logger
}

// NewFileStore 创建文件存储，root 不存在时自动创建
func NewFileStore(root string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if root == "" {
		return nil, fmt.Errorf("skill store base dir is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create skill store directory: %w", err)
	}
	return &FileStore{
		root:   root,
		logger: logger.With(zap.String("component", "skill_file_store")),
	}, nil
}

// Root 返回根目录
func (f *FileStore) Root() string { return f.root }

// Save 实现 Store.Save。文件先写入 root 下的临时目录，完成后整体重命名为
// <root>/<skill_id>，失败时不留下半成品目录。
func (f *FileStore) Save(ctx context.Context, skill *Skill) error {
	if err := skill.Validate(); err != nil {
		return err
	}

	exists, err := f.Exists(ctx, skill.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrSkillExists
	}

	tmp, err := os.MkdirTemp(f.root, stagingPrefix+skill.ID+"-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = os.RemoveAll(tmp)
		}
	}()
	if err := os.Chmod(tmp, 0o755); err != nil {
		return fmt.Errorf("failed to prepare staging directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(tmp, ArtifactFile), []byte(skill.Artifact), 0o644); err != nil {
		return fmt.Errorf("failed to write skill artifact: %w", err)
	}
	data, err := json.MarshalIndent(manifest{Skill: *skill, Files: []string{ArtifactFile}}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal skill manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(tmp, ManifestFile), data, 0o644); err != nil {
		return fmt.Errorf("failed to write skill manifest: %w", err)
	}

	dir := filepath.Join(f.root, skill.ID)
	// 没有 SKILL.json 的同名目录是之前中断的残留
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove incomplete skill directory: %w", err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		if ok, _ := f.Exists(ctx, skill.ID); ok {
			return ErrSkillExists
		}
		return fmt.Errorf("failed to commit skill directory: %w", err)
	}
	committed = true

	f.logger.Debug("skill saved", zap.String("skill_id", skill.ID), zap.String("dir", dir))
	return nil
}

// Exists 实现 Store.Exists，以 SKILL.json 是否存在为准
func (f *FileStore) Exists(_ context.Context, id string) (bool, error) {
	_, err := os.Stat(filepath.Join(f.root, id, ManifestFile))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat skill manifest: %w", err)
}

// Load 实现 Store.Load
func (f *FileStore) Load(_ context.Context, id string) (*Skill, error) {
	dir := filepath.Join(f.root, id)

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrSkillNotFound
		}
		return nil, fmt.Errorf("failed to read skill manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse skill manifest: %w", err)
	}

	artifact, err := os.ReadFile(filepath.Join(dir, ArtifactFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read skill artifact: %w", err)
	}

	skill := m.Skill
	skill.Artifact = string(artifact)
	return &skill, nil
}

// List 实现 Store.List，只列出包含 SKILL.json 的目录
func (f *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read skill store directory: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		ok, err := f.Exists(ctx, e.Name())
		if err != nil {
			return nil, err
		}
		if ok {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Close 实现 Store.Close
func (f *FileStore) Close() error { return nil }
