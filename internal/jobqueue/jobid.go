package jobqueue

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"evalpilot/internal/catalog"
)

// ErrMalformedJobName marks a job name carrying our prefix that cannot be
// decoded. Such names are integrity violations, not foreign jobs.
var ErrMalformedJobName = errors.New("malformed job name")

// ErrForeignJob marks a job name that does not belong to evalpilot.
var ErrForeignJob = errors.New("foreign job")

const taskDelimiter = "+"

// JobID identifies one evaluation job: a model, an iteration, and the leaf
// tasks it covers. Root jobs cover the whole leaf-task universe and carry no
// explicit task list.
type JobID struct {
	Model     string
	Iteration int
	Root      bool
	Tasks     []string
}

// NewJobID builds the JobID for running tasks against model at iteration.
// When tasks equals the full leaf-task universe the job is a root job.
func NewJobID(cat *catalog.Catalog, model string, iteration int, tasks []string) JobID {
	id := JobID{Model: model, Iteration: iteration}
	if cat != nil && cat.IsUniverse(tasks) {
		id.Root = true
		return id
	}
	id.Tasks = catalog.NewTaskSet(tasks...).Sorted()
	return id
}

// Covers returns the leaf tasks the job will produce results for.
func (id JobID) Covers(universe []string) []string {
	if id.Root {
		return slices.Clone(universe)
	}
	return slices.Clone(id.Tasks)
}

// Codec encodes JobIDs as `<prefix>_<model>_<alias>_<iteration>` queue names.
// The alias is the root aggregate name or the leaf tasks joined by '+'.
type Codec struct {
	prefix  string
	root    string
	pattern *regexp.Regexp
}

// NewCodec returns a codec for the given job prefix and root aggregate name.
func NewCodec(prefix, root string) Codec {
	prefix = strings.TrimSpace(prefix)
	return Codec{
		prefix:  prefix,
		root:    strings.TrimSpace(root),
		pattern: regexp.MustCompile(`^` + regexp.QuoteMeta(prefix) + `_(.+)_([^_\s]+)_([0-9]+)$`),
	}
}

// Prefix returns the job name prefix.
func (c Codec) Prefix() string {
	return c.prefix
}

// Alias returns the human-readable alias of id: the root aggregate name or
// the space-joined task list.
func (c Codec) Alias(id JobID) string {
	if id.Root {
		return c.root
	}
	return strings.Join(id.Tasks, " ")
}

// Encode renders the queue job name for id.
func (c Codec) Encode(id JobID) (string, error) {
	model := strings.TrimSpace(id.Model)
	if model == "" || strings.ContainsAny(model, " \t\n") {
		return "", fmt.Errorf("encode job: invalid model %q", id.Model)
	}
	if id.Iteration < 0 {
		return "", fmt.Errorf("encode job: negative iteration %d", id.Iteration)
	}
	alias := c.root
	if !id.Root {
		if len(id.Tasks) == 0 {
			return "", errors.New("encode job: no tasks")
		}
		for _, task := range id.Tasks {
			if task == "" || strings.ContainsAny(task, "_+ \t\n") {
				return "", fmt.Errorf("encode job: invalid task %q", task)
			}
		}
		alias = strings.Join(id.Tasks, taskDelimiter)
	}
	return fmt.Sprintf("%s_%s_%s_%d", c.prefix, model, alias, id.Iteration), nil
}

// Decode parses a queue job name. Names without the prefix return
// ErrForeignJob; prefixed names that do not decode return ErrMalformedJobName.
func (c Codec) Decode(name string) (JobID, error) {
	name = strings.TrimSpace(name)
	if !strings.HasPrefix(name, c.prefix+"_") {
		return JobID{}, ErrForeignJob
	}
	match := c.pattern.FindStringSubmatch(name)
	if match == nil {
		return JobID{}, fmt.Errorf("%w: %q", ErrMalformedJobName, name)
	}
	iteration, err := strconv.Atoi(match[3])
	if err != nil {
		return JobID{}, fmt.Errorf("%w: %q: iteration: %w", ErrMalformedJobName, name, err)
	}
	id := JobID{Model: match[1], Iteration: iteration}
	if match[2] == c.root {
		id.Root = true
		return id, nil
	}
	for _, task := range strings.Split(match[2], taskDelimiter) {
		if task == "" {
			return JobID{}, fmt.Errorf("%w: %q: empty task in alias", ErrMalformedJobName, name)
		}
		id.Tasks = append(id.Tasks, task)
	}
	slices.Sort(id.Tasks)
	return id, nil
}
