package videos

import "errors"

// ErrAssetStorageUnavailable indicates no object store is configured.
var ErrAssetStorageUnavailable = errors.New("asset storage unavailable")
