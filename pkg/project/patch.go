package project

// Patch types give mutators shallow-merge semantics: a set (non-nil)
// field overrides the stored value, a nil field leaves it untouched.
// This mirrors the original system's per-record shallow merge without
// resorting to untyped maps.

// DocumentPatch is a partial update of a DocumentRecord.
type DocumentPatch struct {
	Title     *string
	Content   *string
	Format    *string
	UpdatedBy *string
}

func (p DocumentPatch) apply(rec DocumentRecord) DocumentRecord {
	if p.Title != nil {
		rec.Title = *p.Title
	}
	if p.Content != nil {
		rec.Content = *p.Content
	}
	if p.Format != nil {
		rec.Format = *p.Format
	}
	if p.UpdatedBy != nil {
		rec.UpdatedBy = *p.UpdatedBy
	}
	return rec
}

// ArtifactPatch is a partial update of an ArtifactRecord.
type ArtifactPatch struct {
	Content   *string
	Language  *string
	Summary   *string
	UpdatedBy *string
}

func (p ArtifactPatch) apply(rec ArtifactRecord) ArtifactRecord {
	if p.Content != nil {
		rec.Content = *p.Content
	}
	if p.Language != nil {
		rec.Language = *p.Language
	}
	if p.Summary != nil {
		rec.Summary = *p.Summary
	}
	if p.UpdatedBy != nil {
		rec.UpdatedBy = *p.UpdatedBy
	}
	return rec
}

// AgentContextPatch is a partial update of an AgentContext.
// Slice fields replace wholesale when set.
type AgentContextPatch struct {
	Current         *TaskPointer
	NextTasks       *[]string
	NeedsFromOthers *[]string
}

func (p AgentContextPatch) apply(c *AgentContext) {
	if p.Current != nil {
		c.Current = *p.Current
	}
	if p.NextTasks != nil {
		c.NextTasks = append([]string{}, (*p.NextTasks)...)
	}
	if p.NeedsFromOthers != nil {
		c.NeedsFromOthers = append([]string{}, (*p.NeedsFromOthers)...)
	}
}

// String returns a pointer to s, for building patches inline.
func String(s string) *string {
	return &s
}

// Tasks returns a pointer to a task list, for building patches inline.
func Tasks(tasks ...string) *[]string {
	return &tasks
}

// Pointer returns a pointer to tp, for building patches inline.
func Pointer(tp TaskPointer) *TaskPointer {
	return &tp
}
