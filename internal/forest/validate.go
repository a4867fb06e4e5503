package forest

import (
	"github.com/spigell/internship-recommender/internal/apperr"
)

// Validate checks that a loaded forest can be walked safely: every split
// references a known feature and points to children stored after it.
func (f *Forest) Validate() error {
	if f == nil {
		return apperr.New(apperr.ErrArtifactCorrupt, "ranking model is empty")
	}
	if f.Features <= 0 {
		return apperr.Newf(apperr.ErrArtifactCorrupt, "ranking model has %d features", f.Features)
	}
	if len(f.Trees) == 0 {
		return apperr.New(apperr.ErrArtifactCorrupt, "ranking model has no trees")
	}

	for t, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return apperr.Newf(apperr.ErrArtifactCorrupt, "tree %d has no nodes", t)
		}
		for i, n := range tree.Nodes {
			if !finite(n.Value, n.Threshold) {
				return apperr.Newf(apperr.ErrArtifactCorrupt, "tree %d node %d holds a non finite value", t, i)
			}
			if n.Feature == leaf {
				continue
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return apperr.Newf(apperr.ErrArtifactCorrupt, "tree %d node %d splits on unknown feature %d", t, i, n.Feature)
			}
			if n.Left <= i || n.Right <= i || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return apperr.Newf(apperr.ErrArtifactCorrupt, "tree %d node %d has invalid children", t, i)
			}
		}
	}
	return nil
}
