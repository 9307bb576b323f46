package composer

import "github.com/leapstack-labs/querycomposer/internal/textsync"

const textsyncDelay = textsync.DefaultDelay
