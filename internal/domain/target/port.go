package target

import "context"

type Repo interface {
	ListActive(ctx context.Context) ([]Target, error)
}
