package mock

import (
	"carona/internal/redis"
	"carona/internal/repository"
)

var (
	_ repository.OfferRepository   = (*OfferRepository)(nil)
	_ repository.BookingRepository = (*BookingRepository)(nil)
	_ repository.RatingRepository  = (*RatingRepository)(nil)
	_ repository.RequestRepository = (*RequestRepository)(nil)
	_ repository.VehicleRegistry   = (*VehicleRegistry)(nil)
	_ redis.LockStoreInterface     = (*LockStore)(nil)
	_ redis.RatingCacheInterface   = (*RatingCache)(nil)
)
