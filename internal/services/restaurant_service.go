package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/tavolo-app/api/internal/domain"
	"github.com/tavolo-app/api/internal/repositories"
)

const (
	restaurantIDPrefix  = "rst_"
	dishIDPrefix        = "dsh_"
	sittingTimeIDPrefix = "sit_"
)

var (
	// ErrRestaurantInvalidInput signals the caller provided invalid data.
	ErrRestaurantInvalidInput = errors.New("restaurant: invalid input")
	// ErrRestaurantNotFound indicates the restaurant could not be located.
	ErrRestaurantNotFound = errors.New("restaurant: not found")
	// ErrRestaurantConflict indicates optimistic concurrency conflicts or duplicates.
	ErrRestaurantConflict = errors.New("restaurant: conflict")
)

// RestaurantServiceDeps bundles collaborators required to construct the restaurant service.
type RestaurantServiceDeps struct {
	Restaurants repositories.RestaurantRepository
	Users       repositories.UserRepository
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type restaurantService struct {
	restaurants repositories.RestaurantRepository
	users       repositories.UserRepository
	clock       func() time.Time
	newID       func() string
	logger      func(context.Context, string, map[string]any)
}

// NewRestaurantService wires dependencies into a concrete RestaurantService implementation.
func NewRestaurantService(deps RestaurantServiceDeps) (RestaurantService, error) {
	if deps.Restaurants == nil {
		return nil, errors.New("restaurant service: restaurant repository is required")
	}
	if deps.Users == nil {
		return nil, errors.New("restaurant service: user repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &restaurantService{
		restaurants: deps.Restaurants,
		users:       deps.Users,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *restaurantService) Create(ctx context.Context, cmd CreateRestaurantCommand) (Restaurant, error) {
	name := strings.TrimSpace(cmd.Name)
	restaurateurID := strings.TrimSpace(cmd.RestaurateurID)
	cookID := strings.TrimSpace(cmd.CookID)

	if name == "" {
		return Restaurant{}, fmt.Errorf("%w: name is required", ErrRestaurantInvalidInput)
	}
	if restaurateurID == "" {
		return Restaurant{}, fmt.Errorf("%w: restaurateur id is required", ErrRestaurantInvalidInput)
	}
	if cookID == "" {
		return Restaurant{}, fmt.Errorf("%w: cook id is required", ErrRestaurantInvalidInput)
	}

	restaurateur, err := s.users.FindByID(ctx, restaurateurID)
	if err != nil {
		return Restaurant{}, s.mapStaffError(err, "restaurateur")
	}
	if restaurateur.Role != domain.RoleRestaurateur {
		return Restaurant{}, fmt.Errorf("%w: user %s does not hold the restaurateur role", ErrRestaurantInvalidInput, restaurateurID)
	}
	cook, err := s.users.FindByID(ctx, cookID)
	if err != nil {
		return Restaurant{}, s.mapStaffError(err, "cook")
	}
	if cook.Role != domain.RoleCook {
		return Restaurant{}, fmt.Errorf("%w: user %s does not hold the cook role", ErrRestaurantInvalidInput, cookID)
	}

	sittings, err := s.normaliseSittingTimes(cmd.SittingTimes)
	if err != nil {
		return Restaurant{}, err
	}

	now := s.now()
	restaurant := Restaurant{
		ID:           restaurantIDPrefix + s.newID(),
		Name:         name,
		Address:      strings.TrimSpace(cmd.Address),
		Phone:        strings.TrimSpace(cmd.Phone),
		Restaurateur: userSummaryOf(restaurateur),
		Cook:         userSummaryOf(cook),
		SittingTimes: sittings,
		Tables:       cmd.Tables,
		Metadata:     cloneMap(cmd.Metadata),
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.restaurants.Insert(ctx, restaurant); err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	return restaurant, nil
}

func (s *restaurantService) Get(ctx context.Context, restaurantID string) (Restaurant, error) {
	restaurantID = strings.TrimSpace(restaurantID)
	if restaurantID == "" {
		return Restaurant{}, fmt.Errorf("%w: restaurant id is required", ErrRestaurantInvalidInput)
	}

	restaurant, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	return restaurant, nil
}

func (s *restaurantService) List(ctx context.Context, filter repositories.RestaurantListFilter) (domain.CursorPage[Restaurant], error) {
	page, err := s.restaurants.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Restaurant]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *restaurantService) Update(ctx context.Context, cmd UpdateRestaurantCommand) (Restaurant, error) {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	if restaurantID == "" {
		return Restaurant{}, fmt.Errorf("%w: restaurant id is required", ErrRestaurantInvalidInput)
	}

	restaurant, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	restaurant.Version = cmd.Version

	if cmd.Name != nil {
		name := strings.TrimSpace(*cmd.Name)
		if name == "" {
			return Restaurant{}, fmt.Errorf("%w: name cannot be empty", ErrRestaurantInvalidInput)
		}
		restaurant.Name = name
	}
	if cmd.Address != nil {
		restaurant.Address = strings.TrimSpace(*cmd.Address)
	}
	if cmd.Phone != nil {
		restaurant.Phone = strings.TrimSpace(*cmd.Phone)
	}
	if cmd.Tables != nil {
		if *cmd.Tables < 0 {
			return Restaurant{}, fmt.Errorf("%w: tables cannot be negative", ErrRestaurantInvalidInput)
		}
		restaurant.Tables = *cmd.Tables
	}
	if cmd.SittingTimes != nil {
		sittings, err := s.normaliseSittingTimes(cmd.SittingTimes)
		if err != nil {
			return Restaurant{}, err
		}
		restaurant.SittingTimes = sittings
	}

	updated, err := s.restaurants.Update(ctx, restaurant)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *restaurantService) UpsertDish(ctx context.Context, cmd UpsertDishCommand) (Restaurant, error) {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	if restaurantID == "" {
		return Restaurant{}, fmt.Errorf("%w: restaurant id is required", ErrRestaurantInvalidInput)
	}
	dish := cmd.Dish
	dish.Name = strings.TrimSpace(dish.Name)
	if dish.Name == "" {
		return Restaurant{}, fmt.Errorf("%w: dish name is required", ErrRestaurantInvalidInput)
	}
	if dish.PriceCents < 0 {
		return Restaurant{}, fmt.Errorf("%w: dish price cannot be negative", ErrRestaurantInvalidInput)
	}

	restaurant, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	restaurant.Version = cmd.Version

	now := s.now()
	dish.UpdatedAt = now
	if strings.TrimSpace(dish.ID) == "" {
		dish.ID = dishIDPrefix + s.newID()
		dish.CreatedAt = now
		restaurant.Dishes = append(restaurant.Dishes, dish)
	} else {
		replaced := false
		for i, existing := range restaurant.Dishes {
			if existing.ID == dish.ID {
				dish.CreatedAt = existing.CreatedAt
				restaurant.Dishes[i] = dish
				replaced = true
				break
			}
		}
		if !replaced {
			return Restaurant{}, fmt.Errorf("%w: dish %s does not exist", ErrRestaurantInvalidInput, dish.ID)
		}
	}

	updated, err := s.restaurants.Update(ctx, restaurant)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *restaurantService) RemoveDish(ctx context.Context, cmd RemoveDishCommand) (Restaurant, error) {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	dishID := strings.TrimSpace(cmd.DishID)
	if restaurantID == "" {
		return Restaurant{}, fmt.Errorf("%w: restaurant id is required", ErrRestaurantInvalidInput)
	}
	if dishID == "" {
		return Restaurant{}, fmt.Errorf("%w: dish id is required", ErrRestaurantInvalidInput)
	}

	restaurant, err := s.restaurants.FindByID(ctx, restaurantID)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	restaurant.Version = cmd.Version

	kept := restaurant.Dishes[:0]
	removed := false
	for _, dish := range restaurant.Dishes {
		if dish.ID == dishID {
			removed = true
			continue
		}
		kept = append(kept, dish)
	}
	if !removed {
		return Restaurant{}, fmt.Errorf("%w: dish %s does not exist", ErrRestaurantInvalidInput, dishID)
	}
	restaurant.Dishes = kept

	updated, err := s.restaurants.Update(ctx, restaurant)
	if err != nil {
		return Restaurant{}, s.mapRepositoryError(err)
	}
	return updated, nil
}

func (s *restaurantService) SoftDelete(ctx context.Context, cmd DeleteRestaurantCommand) error {
	restaurantID := strings.TrimSpace(cmd.RestaurantID)
	if restaurantID == "" {
		return fmt.Errorf("%w: restaurant id is required", ErrRestaurantInvalidInput)
	}

	if _, err := s.restaurants.FindByID(ctx, restaurantID); err != nil {
		return s.mapRepositoryError(err)
	}
	if err := s.restaurants.SoftDelete(ctx, restaurantID, s.now()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *restaurantService) normaliseSittingTimes(sittings []SittingTime) ([]SittingTime, error) {
	normalised := make([]SittingTime, 0, len(sittings))
	for _, sitting := range sittings {
		sitting.Start = strings.TrimSpace(sitting.Start)
		sitting.End = strings.TrimSpace(sitting.End)
		if sitting.Start == "" || sitting.End == "" {
			return nil, fmt.Errorf("%w: sitting time window is required", ErrRestaurantInvalidInput)
		}
		if sitting.Capacity < 0 {
			return nil, fmt.Errorf("%w: sitting time capacity cannot be negative", ErrRestaurantInvalidInput)
		}
		if strings.TrimSpace(sitting.ID) == "" {
			sitting.ID = sittingTimeIDPrefix + s.newID()
		}
		normalised = append(normalised, sitting)
	}
	return normalised, nil
}

func (s *restaurantService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrRestaurantNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrRestaurantConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("restaurant: repository unavailable: %w", err)
		}
	}

	return err
}

func (s *restaurantService) mapStaffError(err error, role string) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %s not found", ErrRestaurantInvalidInput, role)
	}
	return err
}

func (s *restaurantService) now() time.Time {
	return s.clock()
}
