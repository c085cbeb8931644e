package blocktree

import (
	"github.com/pkg/errors"

	"github.com/corechain/node/internal/xerrors"
)

var errDuplicateReporterSlot = errors.Wrap(xerrors.ErrInvalidBlock, "blocktree: reporter already has an unexecuted block at this level")

func errBanned(reason string) error {
	return errors.Wrap(xerrors.ErrInvalidBlock, "blocktree: banned ("+reason+")")
}
