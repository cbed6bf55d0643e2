package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

type optionRefresher interface {
	RefreshAll(ctx context.Context) (int, error)
}

// AttributeRefreshJob recomputes numeric and date attribute options of every
// project that has a casebase.
type AttributeRefreshJob struct {
	options optionRefresher
}

func NewAttributeRefreshJob(options optionRefresher) *AttributeRefreshJob {
	return &AttributeRefreshJob{options: options}
}

func (j *AttributeRefreshJob) Name() string {
	return "attribute_refresh"
}

func (j *AttributeRefreshJob) Run(ctx context.Context) error {
	n, err := j.options.RefreshAll(ctx)
	if err != nil {
		return err
	}
	logutil.GetLogger(ctx).Info("attribute options refreshed", zap.Int("projects", n))
	return nil
}
