package payload

import (
	"regexp"
	"strings"
	"time"
)

// Profile is the normalized view of a scraped creator profile.
type Profile struct {
	Account   string `json:"account"`
	FullName  string `json:"full_name,omitempty"`
	URL       string `json:"profile_url"`
	Followers int64  `json:"followers"`
	Following int64  `json:"following,omitempty"`
	PostCount int64  `json:"posts_count,omitempty"`
	IsPrivate bool   `json:"is_private"`
	Verified  bool   `json:"is_verified,omitempty"`
	Bio       string `json:"biography,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Posts     []Post `json:"posts,omitempty"`
	Raw       Value  `json:"-"`
}

// Post is the normalized view of one post or video.
type Post struct {
	Key      string    `json:"key,omitempty"`
	URL      string    `json:"url,omitempty"`
	Caption  string    `json:"caption,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	Likes    int64     `json:"likes,omitempty"`
	Comments int64     `json:"comments,omitempty"`
	Views    int64     `json:"views,omitempty"`
	PostedAt time.Time `json:"posted_at,omitempty"`
	Hashtags []string  `json:"hashtags,omitempty"`
}

var (
	accountKeys   = []string{"account", "username", "user_name", "uniqueId", "unique_id", "handle", "profile_name"}
	fullNameKeys  = []string{"full_name", "fullName", "nickname", "name", "profile_name"}
	profileURLKey = []string{"profile_url", "profileUrl", "url", "link", "input_url"}
	followerKeys  = []string{"followers", "follower_count", "followers_count", "followerCount", "fans", "edge_followed_by"}
	followingKeys = []string{"following", "following_count", "followingCount", "edge_follow"}
	postCountKeys = []string{"posts_count", "post_count", "media_count", "videoCount", "video_count", "videos_count"}
	privateKeys   = []string{"is_private", "isPrivate", "private", "privateAccount", "private_account"}
	verifiedKeys  = []string{"is_verified", "isVerified", "verified"}
	bioKeys       = []string{"biography", "bio", "signature", "description"}
	avatarKeys    = []string{"profile_image_link", "profile_pic_url_hd", "profile_pic_url", "avatarLarger", "avatar_url", "avatar", "profile_image"}
	recentKeys    = []string{"posts", "recent_posts", "videos", "top_videos", "latest_posts", "edge_owner_to_timeline_media"}
	pinnedKeys    = []string{"pinned_posts", "pinned_videos", "pinned"}

	captionKeys  = []string{"caption", "description", "desc", "text", "title"}
	postImgKeys  = []string{"image_url", "display_url", "thumbnail_url", "thumbnail", "cover", "image", "images"}
	likeKeys     = []string{"likes", "like_count", "likes_count", "diggCount", "digg_count", "edge_liked_by"}
	commentKeys  = []string{"comments", "comment_count", "comments_count", "commentCount", "edge_media_to_comment"}
	viewKeys     = []string{"views", "view_count", "video_view_count", "playCount", "play_count"}
	postTimeKeys = []string{"timestamp", "taken_at", "taken_at_timestamp", "createTime", "create_time", "date_posted", "datetime"}
	hashtagKeys  = []string{"hashtags", "hashtag_list", "challenges"}
)

// ExtractProfile reads a Profile out of an upstream record of unknown shape.
func ExtractProfile(v Value) Profile {
	p := Profile{Raw: v}
	p.Account, _ = LookupString(v, accountKeys...)
	p.Account = strings.TrimPrefix(p.Account, "@")
	p.FullName, _ = PickString(v, fullNameKeys...)
	p.URL, _ = PickString(v, profileURLKey...)
	if n, ok := LookupNumber(v, followerKeys...); ok {
		p.Followers = CountInt(n)
	}
	if n, ok := PickNumber(v, followingKeys...); ok {
		p.Following = CountInt(n)
	}
	if n, ok := PickNumber(v, postCountKeys...); ok {
		p.PostCount = CountInt(n)
	}
	p.IsPrivate, _ = PickBool(v, privateKeys...)
	p.Verified, _ = PickBool(v, verifiedKeys...)
	p.Bio, _ = PickString(v, bioKeys...)
	p.AvatarURL, _ = LookupImageURL(v, avatarKeys...)

	pinned, _ := PickArray(v, pinnedKeys...)
	recent, _ := PickArray(v, recentKeys...)
	for _, rec := range MergeRecords(pinned, recent) {
		p.Posts = append(p.Posts, ExtractPost(rec))
	}
	return p
}

// ExtractPost reads a Post out of an upstream post or video record.
func ExtractPost(v Value) Post {
	p := Post{Key: RecordKey(v)}
	p.URL, _ = PickString(v, recordURLKeys...)
	p.Caption, _ = PickString(v, captionKeys...)
	p.ImageURL, _ = LookupImageURL(v, postImgKeys...)
	if n, ok := PickNumber(v, likeKeys...); ok {
		p.Likes = CountInt(n)
	}
	if n, ok := PickNumber(v, commentKeys...); ok {
		p.Comments = CountInt(n)
	}
	if n, ok := PickNumber(v, viewKeys...); ok {
		p.Views = CountInt(n)
	}
	p.PostedAt, _ = PickTimestamp(v, postTimeKeys...)

	if tags, ok := PickArray(v, hashtagKeys...); ok {
		for _, t := range tags {
			name, ok := stringOf(t)
			if !ok {
				name, ok = PickString(t, "name", "title", "hashtag")
			}
			if ok {
				p.Hashtags = appendUnique(p.Hashtags, strings.ToLower(strings.TrimPrefix(name, "#")))
			}
		}
	}
	if len(p.Hashtags) == 0 {
		p.Hashtags = Hashtags(p.Caption)
	}
	return p
}

var hashtagRe = regexp.MustCompile(`#([\p{L}\p{N}_]+)`)

// Hashtags extracts unique lower-cased hashtags from free text in order of appearance.
func Hashtags(text string) []string {
	var out []string
	for _, m := range hashtagRe.FindAllStringSubmatch(text, -1) {
		out = appendUnique(out, strings.ToLower(m[1]))
	}
	return out
}

func appendUnique(list []string, s string) []string {
	if s == "" {
		return list
	}
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
