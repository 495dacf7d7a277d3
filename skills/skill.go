package skills

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// References 技能来源
type References struct {
	CaseID    string `json:"case_id"`
	AgentRole string `json:"agent_role"`
	TaskName  string `json:"task_name"`
}

// Metadata 技能元数据
type Metadata struct {
	Title       string     `json:"title"`
	Summary     string     `json:"summary"`
	References  References `json:"references"`
	GeneratedAt time.Time  `json:"generated_at"`
}

// Skill 由一次成功执行生成的可复用技能
type Skill struct {
	ID       string   `json:"id"`
	Metadata Metadata `json:"metadata"`
	// Artifact 技能正文（Markdown），文件存储中单独落盘
	Artifact string `json:"-"`
}

// 错误定义
var (
	ErrSkillNotFound = errors.New("skill not found")
	ErrSkillExists   = errors.New("skill already exists")
	ErrInvalidSkill  = errors.New("invalid skill")
)

// Validate 验证技能
func (s *Skill) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: nil skill", ErrInvalidSkill)
	}
	if s.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidSkill)
	}
	if strings.ContainsAny(s.ID, `/\`) || s.ID == "." || s.ID == ".." {
		return fmt.Errorf("%w: id %q is not a valid path segment", ErrInvalidSkill, s.ID)
	}
	if s.Metadata.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidSkill)
	}
	return nil
}

// Clone 深拷贝
func (s *Skill) Clone() *Skill {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
