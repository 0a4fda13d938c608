package logctx

import (
	"context"
	"mibridge/internal/global"
	"slices"
)

// Append new tag to tag list.
// Copies so sibling contexts never share a backing array.
func AppendCtxTag(ctx context.Context, newTag string) (newCtx context.Context) {
	tags := slices.Concat(GetTagList(ctx), []string{newTag})
	newCtx = context.WithValue(ctx, global.LogTagsKey, tags)
	return
}

// Overwrites entire tag list with given list
func OverwriteCtxTag(ctx context.Context, newList []string) (newCtx context.Context) {
	newCtx = context.WithValue(ctx, global.LogTagsKey, slices.Clone(newList))
	return
}

// Extracts tag list from context or returns empty array
func GetTagList(ctx context.Context) (tags []string) {
	tags, validAssert := ctx.Value(global.LogTagsKey).([]string)
	if !validAssert {
		tags = []string{}
	}
	return
}

// Attributes every event logged under ctx to a remote device address
func WithPeer(ctx context.Context, address string) (newCtx context.Context) {
	newCtx = context.WithValue(ctx, global.LogPeerKey, address)
	return
}

// Remote address set by WithPeer, empty when none
func GetPeer(ctx context.Context) (address string) {
	address, _ = ctx.Value(global.LogPeerKey).(string)
	return
}
