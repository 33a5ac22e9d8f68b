package term

import (
	"crypto/sha256"
	"sort"
	"sync"
	"time"
)

// ImageFormat identifies the pixel layout of stored image bytes.
type ImageFormat uint8

const (
	ImageFormatRGBA ImageFormat = iota
	ImageFormatRGB
	ImageFormatPNG
)

// ImageEntry is one stored image in the side table: decoded pixels plus
// the bookkeeping the store needs for deduplication and eviction.
type ImageEntry struct {
	ID         uint32
	Format     ImageFormat
	Width      uint32
	Height     uint32
	Data       []byte
	Hash       [32]byte
	CreatedAt  time.Time
	AccessedAt time.Time
}

// ImagePlacement is one displayed instance of an image: where it sits in
// the grid, how many cells it covers, and which slice of the source image
// it shows.
type ImagePlacement struct {
	ID      uint32
	ImageID uint32

	Row, Col   int
	Cols, Rows int

	SrcX, SrcY uint32
	SrcW, SrcH uint32

	// ZIndex orders placements against text: negative is behind.
	ZIndex int32

	// Sub-cell pixel offset within the first cell.
	OffsetX, OffsetY uint32
}

// CellImage is the per-cell image reference: which placement covers the
// cell and the texture coordinates of the cell's slice.
type CellImage struct {
	PlacementID uint32
	ImageID     uint32

	U0, V0 float32
	U1, V1 float32

	ZIndex int32
}

// ImageStore is the opaque image side table: image id to entry, plus the
// placement map. Adds are atomic; deleting an image also deletes its
// placements. A byte budget bounds memory, evicting the least recently
// used unplaced images first.
type ImageStore struct {
	mu sync.RWMutex

	images     map[uint32]*ImageEntry
	placements map[uint32]*ImagePlacement
	hashToID   map[[32]byte]uint32

	nextImageID     uint32
	nextPlacementID uint32

	maxMemory  int64
	usedMemory int64

	// Chunked Kitty transmissions accumulate here until the final chunk.
	// The first chunk's format metadata is kept because continuation
	// chunks carry only payload.
	accumulator            []byte
	accumulatorID          uint32
	accumulatorMore        bool
	accumulatorFormat      KittyFormat
	accumulatorWidth       uint32
	accumulatorHeight      uint32
	accumulatorCompression byte
}

const defaultImageBudget = 320 << 20

// NewImageStore creates an empty store with the default 320 MiB budget.
func NewImageStore() *ImageStore {
	return &ImageStore{
		images:     make(map[uint32]*ImageEntry),
		placements: make(map[uint32]*ImagePlacement),
		hashToID:   make(map[[32]byte]uint32),
		maxMemory:  defaultImageBudget,
	}
}

// SetMaxMemory changes the byte budget.
func (s *ImageStore) SetMaxMemory(bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxMemory = bytes
}

// Store adds RGBA pixels and returns the assigned id. Identical bytes
// (same hash) return the existing id instead of duplicating storage.
func (s *ImageStore) Store(width, height uint32, data []byte) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := sha256.Sum256(data)
	if id, ok := s.hashToID[hash]; ok {
		if entry, ok := s.images[id]; ok {
			entry.AccessedAt = time.Now()
			return id
		}
	}

	s.nextImageID++
	s.insertLocked(s.nextImageID, width, height, data, hash)
	return s.nextImageID
}

// StoreWithID adds pixels under a caller-chosen id (the Kitty protocol's
// client-supplied i= parameter), replacing any previous image with that id.
func (s *ImageStore) StoreWithID(id, width, height uint32, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.images[id]; ok {
		s.usedMemory -= int64(len(old.Data))
		delete(s.hashToID, old.Hash)
	}
	s.insertLocked(id, width, height, data, sha256.Sum256(data))
	if id >= s.nextImageID {
		s.nextImageID = id + 1
	}
}

func (s *ImageStore) insertLocked(id, width, height uint32, data []byte, hash [32]byte) {
	now := time.Now()
	s.images[id] = &ImageEntry{
		ID:         id,
		Format:     ImageFormatRGBA,
		Width:      width,
		Height:     height,
		Data:       data,
		Hash:       hash,
		CreatedAt:  now,
		AccessedAt: now,
	}
	s.hashToID[hash] = id
	s.usedMemory += int64(len(data))

	if s.usedMemory > s.maxMemory {
		s.pruneLocked()
	}
}

// Image returns the entry for id, or nil, refreshing its access time.
func (s *ImageStore) Image(id uint32) *ImageEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if entry, ok := s.images[id]; ok {
		entry.AccessedAt = time.Now()
		return entry
	}
	return nil
}

// Place registers a placement and returns its id.
func (s *ImageStore) Place(p *ImagePlacement) uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPlacementID++
	p.ID = s.nextPlacementID
	s.placements[p.ID] = p
	return p.ID
}

// Placement returns the placement for id, or nil.
func (s *ImageStore) Placement(id uint32) *ImagePlacement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.placements[id]
}

// Placements returns every live placement, in no particular order.
func (s *ImageStore) Placements() []*ImagePlacement {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*ImagePlacement, 0, len(s.placements))
	for _, p := range s.placements {
		out = append(out, p)
	}
	return out
}

// RemovePlacement deletes one placement.
func (s *ImageStore) RemovePlacement(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.placements, id)
}

// RemovePlacementsForImage deletes every placement of an image, keeping
// the image itself.
func (s *ImageStore) RemovePlacementsForImage(imageID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletePlacementsLocked(func(p *ImagePlacement) bool { return p.ImageID == imageID })
}

// DeleteImage removes an image and every placement referencing it.
func (s *ImageStore) DeleteImage(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.images[id]; ok {
		s.usedMemory -= int64(len(entry.Data))
		delete(s.hashToID, entry.Hash)
		delete(s.images, id)
	}
	s.deletePlacementsLocked(func(p *ImagePlacement) bool { return p.ImageID == id })
}

// Clear empties the store, including any half-received chunked upload.
func (s *ImageStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.images = make(map[uint32]*ImageEntry)
	s.placements = make(map[uint32]*ImagePlacement)
	s.hashToID = make(map[[32]byte]uint32)
	s.usedMemory = 0
	s.accumulator = nil
	s.accumulatorMore = false
}

// UsedMemory returns the bytes currently held.
func (s *ImageStore) UsedMemory() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usedMemory
}

// ImageCount returns the number of stored images.
func (s *ImageStore) ImageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.images)
}

// PlacementCount returns the number of live placements.
func (s *ImageStore) PlacementCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.placements)
}

// pruneLocked drops least-recently-used images with no live placement
// until the store is back under budget. Placed images are never evicted.
func (s *ImageStore) pruneLocked() {
	placed := make(map[uint32]bool, len(s.placements))
	for _, p := range s.placements {
		placed[p.ImageID] = true
	}

	var victims []*ImageEntry
	for id, entry := range s.images {
		if !placed[id] {
			victims = append(victims, entry)
		}
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].AccessedAt.Before(victims[j].AccessedAt)
	})

	for _, entry := range victims {
		if s.usedMemory <= s.maxMemory {
			break
		}
		delete(s.hashToID, entry.Hash)
		delete(s.images, entry.ID)
		s.usedMemory -= int64(len(entry.Data))
	}
}

func (s *ImageStore) deletePlacementsLocked(match func(*ImagePlacement) bool) {
	for id, p := range s.placements {
		if match(p) {
			delete(s.placements, id)
		}
	}
}

// DeletePlacementsByPosition removes placements covering a cell.
func (s *ImageStore) DeletePlacementsByPosition(row, col int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletePlacementsLocked(func(p *ImagePlacement) bool {
		return row >= p.Row && row < p.Row+p.Rows && col >= p.Col && col < p.Col+p.Cols
	})
}

// DeletePlacementsByZIndex removes placements at a z-index.
func (s *ImageStore) DeletePlacementsByZIndex(z int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletePlacementsLocked(func(p *ImagePlacement) bool { return p.ZIndex == z })
}

// DeletePlacementsInRow removes placements intersecting a row.
func (s *ImageStore) DeletePlacementsInRow(row int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletePlacementsLocked(func(p *ImagePlacement) bool {
		return row >= p.Row && row < p.Row+p.Rows
	})
}

// DeletePlacementsInColumn removes placements intersecting a column.
func (s *ImageStore) DeletePlacementsInColumn(col int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletePlacementsLocked(func(p *ImagePlacement) bool {
		return col >= p.Col && col < p.Col+p.Cols
	})
}

// assignImageToCells stamps the per-cell texture slice references for a
// placement, so the renderer can draw image cells in grid order.
func (t *Terminal) assignImageToCells(imageID, placementID uint32, p *ImagePlacement, imgW, imgH uint32, cellW, cellH int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for row := 0; row < p.Rows; row++ {
		for col := 0; col < p.Cols; col++ {
			gridRow := p.Row + row
			gridCol := p.Col + col
			cell := t.active.Cell(gridRow, gridCol)
			if cell == nil {
				continue
			}

			u0 := float32(col*cellW) / float32(imgW)
			v0 := float32(row*cellH) / float32(imgH)
			u1 := float32((col+1)*cellW) / float32(imgW)
			v1 := float32((row+1)*cellH) / float32(imgH)
			if u1 > 1 {
				u1 = 1
			}
			if v1 > 1 {
				v1 = 1
			}

			cell.Image = &CellImage{
				PlacementID: placementID,
				ImageID:     imageID,
				U0:          u0,
				V0:          v0,
				U1:          u1,
				V1:          v1,
				ZIndex:      p.ZIndex,
			}
			t.active.MarkDirty(gridRow, gridCol)
		}
	}
}
