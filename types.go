package groovego

import (
	"strings"
	"time"
)

// Type definitions for Groove API responses.
// Field names match the service's JSON structure, which is PascalCase.

// MediaNamespace selects the content namespace for a call.
type MediaNamespace string

const (
	// MediaNamespaceMusic is the music catalog namespace.
	MediaNamespaceMusic MediaNamespace = "music"
)

// ContentSource is a bitwise flag set selecting which content sources a call
// should consider. The service renders flag sets as "+"-joined names, e.g.
// "Catalog+Collection".
type ContentSource uint

const (
	// ContentSourceCatalog targets the public catalog.
	ContentSourceCatalog ContentSource = 1 << iota
	// ContentSourceCollection targets the signed-in user's collection.
	ContentSourceCollection
)

var contentSourceNames = []flagName[ContentSource]{
	{ContentSourceCatalog, "Catalog"},
	{ContentSourceCollection, "Collection"},
}

// String renders the flag set as "+"-joined flag names.
func (s ContentSource) String() string {
	return formatFlags(s, contentSourceNames)
}

// SearchFilter is a bitwise flag set restricting which result collections a
// search returns. The zero value means the service default (all types).
type SearchFilter uint

const (
	// SearchFilterArtists includes artist results.
	SearchFilterArtists SearchFilter = 1 << iota
	// SearchFilterAlbums includes album results.
	SearchFilterAlbums
	// SearchFilterTracks includes track results.
	SearchFilterTracks
	// SearchFilterPlaylists includes playlist results.
	SearchFilterPlaylists

	// SearchFilterDefault lets the service choose which collections to return.
	SearchFilterDefault SearchFilter = 0
)

var searchFilterNames = []flagName[SearchFilter]{
	{SearchFilterArtists, "Artists"},
	{SearchFilterAlbums, "Albums"},
	{SearchFilterTracks, "Tracks"},
	{SearchFilterPlaylists, "Playlists"},
}

// String renders the flag set as "+"-joined flag names.
func (f SearchFilter) String() string {
	return formatFlags(f, searchFilterNames)
}

// ExtraDetails is a bitwise flag set selecting optional sub-resources to
// include in lookup responses. For sub-browse calls a single flag is used as
// the path segment selecting the related collection to browse.
type ExtraDetails uint

const (
	// ExtraDetailsAlbums includes the item's albums.
	ExtraDetailsAlbums ExtraDetails = 1 << iota
	// ExtraDetailsTopTracks includes an artist's most played tracks.
	ExtraDetailsTopTracks
	// ExtraDetailsAlbumDetails includes full album metadata.
	ExtraDetailsAlbumDetails
	// ExtraDetailsArtistDetails includes full artist metadata.
	ExtraDetailsArtistDetails
	// ExtraDetailsTracks includes the item's tracks.
	ExtraDetailsTracks
	// ExtraDetailsRelatedArtists includes similar artists.
	ExtraDetailsRelatedArtists

	// ExtraDetailsNone requests no optional sub-resources.
	ExtraDetailsNone ExtraDetails = 0
)

var extraDetailsNames = []flagName[ExtraDetails]{
	{ExtraDetailsAlbums, "Albums"},
	{ExtraDetailsTopTracks, "TopTracks"},
	{ExtraDetailsAlbumDetails, "AlbumDetails"},
	{ExtraDetailsArtistDetails, "ArtistDetails"},
	{ExtraDetailsTracks, "Tracks"},
	{ExtraDetailsRelatedArtists, "RelatedArtists"},
}

// String renders the flag set as "+"-joined flag names.
func (e ExtraDetails) String() string {
	return formatFlags(e, extraDetailsNames)
}

// ItemType is the content type segment of a browse path.
type ItemType string

const (
	ItemTypeArtists   ItemType = "artists"
	ItemTypeAlbums    ItemType = "albums"
	ItemTypeTracks    ItemType = "tracks"
	ItemTypePlaylists ItemType = "playlists"
)

// OrderBy selects the sort order of browse results.
type OrderBy string

const (
	OrderByReleaseDate       OrderBy = "ReleaseDate"
	OrderByMostPopular       OrderBy = "MostPopular"
	OrderByAllTimeMostPlayed OrderBy = "AllTimeMostPlayed"
	OrderByName              OrderBy = "Name"
)

// TrackAction is a collection mutation, the last path segment of a
// collection operation call.
type TrackAction string

const (
	// TrackActionAdd saves tracks to the user's collection.
	TrackActionAdd TrackAction = "add"
	// TrackActionDelete removes tracks from the user's collection.
	TrackActionDelete TrackAction = "delete"
)

// PlaylistAction is a playlist mutation, the last path segment of a playlist
// operation call.
type PlaylistAction string

const (
	PlaylistActionCreate PlaylistAction = "create"
	PlaylistActionUpdate PlaylistAction = "update"
	PlaylistActionDelete PlaylistAction = "delete"
)

// flagName pairs one flag bit with its wire name.
type flagName[T ~uint] struct {
	flag T
	name string
}

// formatFlags renders a flag set as its set flag names joined with "+",
// which is how the service expects multi-flag query parameters.
func formatFlags[T ~uint](flags T, names []flagName[T]) string {
	var parts []string
	for _, fn := range names {
		if flags&fn.flag != 0 {
			parts = append(parts, fn.name)
		}
	}
	return strings.Join(parts, "+")
}

// ErrorCodeInvalidAuthorizationHeader is the API error code reported inside a
// response envelope when the user authorization header was rejected. It is
// the one error code the client acts on itself (see callWithAuthRefresh).
const ErrorCodeInvalidAuthorizationHeader = "INVALID_AUTHORIZATION_HEADER"

// Error is an API-reported error carried inside an otherwise successful
// response. The service reports authorization and request problems this way
// rather than through HTTP status codes.
type Error struct {
	ErrorCode   string `json:"ErrorCode"`
	Message     string `json:"Message,omitempty"`
	Description string `json:"Description,omitempty"`
}

// BaseResponse carries the optional API-reported error shared by every
// response envelope. A nil Error means success.
type BaseResponse struct {
	Error *Error `json:"Error,omitempty"`
}

// apiError lets the auth-refresh wrapper inspect any response envelope.
func (r *BaseResponse) apiError() *Error { return r.Error }

// PaginatedList is one page of results plus the continuation token for the
// next page, if any.
type PaginatedList[T any] struct {
	Items             []T    `json:"Items"`
	TotalItemCount    int    `json:"TotalItemCount"`
	ContinuationToken string `json:"ContinuationToken,omitempty"`
}

// HasMore reports whether another page can be fetched with a continuation
// call.
func (p *PaginatedList[T]) HasMore() bool {
	return p != nil && p.ContinuationToken != ""
}

// Artist is a catalog or collection artist.
type Artist struct {
	ID       string `json:"Id"`
	Name     string `json:"Name"`
	ImageURL string `json:"ImageUrl,omitempty"`
	Link     string `json:"Link,omitempty"`
	Source   string `json:"Source,omitempty"`
}

// Contributor links an artist to an album or track with a role.
type Contributor struct {
	Role   string `json:"Role,omitempty"`
	Artist Artist `json:"Artist"`
}

// Album is a catalog or collection album.
type Album struct {
	ID          string        `json:"Id"`
	Name        string        `json:"Name"`
	ImageURL    string        `json:"ImageUrl,omitempty"`
	Link        string        `json:"Link,omitempty"`
	Source      string        `json:"Source,omitempty"`
	ReleaseDate *time.Time    `json:"ReleaseDate,omitempty"`
	Genres      []string      `json:"Genres,omitempty"`
	Artists     []Contributor `json:"Artists,omitempty"`
	TrackCount  int           `json:"TrackCount,omitempty"`
}

// Track is a catalog or collection track.
type Track struct {
	ID          string        `json:"Id"`
	Name        string        `json:"Name"`
	ImageURL    string        `json:"ImageUrl,omitempty"`
	Link        string        `json:"Link,omitempty"`
	Source      string        `json:"Source,omitempty"`
	Duration    string        `json:"Duration,omitempty"`
	TrackNumber int           `json:"TrackNumber,omitempty"`
	Album       *Album        `json:"Album,omitempty"`
	Artists     []Contributor `json:"Artists,omitempty"`
	Rights      []string      `json:"Rights,omitempty"`
}

// Playlist is a user or editorial playlist.
type Playlist struct {
	ID          string                `json:"Id"`
	Name        string                `json:"Name"`
	Description string                `json:"Description,omitempty"`
	ImageURL    string                `json:"ImageUrl,omitempty"`
	Link        string                `json:"Link,omitempty"`
	Source      string                `json:"Source,omitempty"`
	IsPublished bool                  `json:"IsPublished,omitempty"`
	Tracks      *PaginatedList[Track] `json:"Tracks,omitempty"`
}

// Genre is a catalog genre.
type Genre struct {
	Name                  string `json:"Name"`
	ParentName            string `json:"ParentName,omitempty"`
	HasEditorialPlaylists bool   `json:"HasEditorialPlaylists"`
}

// Mood is an editorial mood used for mood-based browsing.
type Mood struct {
	Name string `json:"Name"`
}

// Activity is an editorial activity used for activity-based browsing.
type Activity struct {
	Name string `json:"Name"`
}

// ContentResponse is the envelope returned by search, lookup, browse and
// discovery calls. Collections the call did not ask for (or that had no
// results) are nil.
type ContentResponse struct {
	BaseResponse
	Artists        *PaginatedList[Artist]   `json:"Artists,omitempty"`
	Albums         *PaginatedList[Album]    `json:"Albums,omitempty"`
	Tracks         *PaginatedList[Track]    `json:"Tracks,omitempty"`
	Playlists      *PaginatedList[Playlist] `json:"Playlists,omitempty"`
	Genres         *PaginatedList[Genre]    `json:"Genres,omitempty"`
	Moods          *PaginatedList[Mood]     `json:"Moods,omitempty"`
	Activities     *PaginatedList[Activity] `json:"Activities,omitempty"`
	CatalogVersion string                   `json:"CatalogVersion,omitempty"`
	Culture        string                   `json:"Culture,omitempty"`
}

// StreamResponse is the envelope returned by stream and preview location
// calls. The URL is short-lived; ExpiresOn says until when it is playable.
type StreamResponse struct {
	BaseResponse
	URL         string     `json:"Url,omitempty"`
	ContentType string     `json:"ContentType,omitempty"`
	ExpiresOn   *time.Time `json:"ExpiresOn,omitempty"`
}

// UserProfileResponse is the envelope returned by the user profile call.
type UserProfileResponse struct {
	BaseResponse
	HasSubscription                    bool   `json:"HasSubscription"`
	IsSubscriptionAvailableForPurchase bool   `json:"IsSubscriptionAvailableForPurchase"`
	Culture                            string `json:"Culture,omitempty"`
}

// TrackActionRequest is the body of a collection mutation call.
type TrackActionRequest struct {
	TrackIDs []string `json:"TrackIds"`
}

// TrackActionResult reports the outcome for one input track of a collection
// mutation.
type TrackActionResult struct {
	InputID string `json:"InputId"`
	ID      string `json:"Id,omitempty"`
	Error   *Error `json:"Error,omitempty"`
}

// TrackActionResponse is the envelope returned by collection mutation calls.
type TrackActionResponse struct {
	BaseResponse
	TrackActionResults []TrackActionResult `json:"TrackActionResults,omitempty"`
}

// PlaylistActionRequest is the body of a playlist mutation call. For create,
// ID is empty; for update and delete it identifies the target playlist.
type PlaylistActionRequest struct {
	ID          string   `json:"Id,omitempty"`
	Name        string   `json:"Name,omitempty"`
	Description string   `json:"Description,omitempty"`
	IsPublished *bool    `json:"IsPublished,omitempty"`
	TrackIDs    []string `json:"TrackIds,omitempty"`
}

// PlaylistActionResponse is the envelope returned by playlist mutation calls.
type PlaylistActionResponse struct {
	BaseResponse
	PlaylistID string `json:"PlaylistId,omitempty"`
}
