/*
Package codec is the image and video toolkit behind the metadata and preview
caches.

The caches depend on the Codec interface only. Adapter is the production
implementation:

  - Still images are decoded with imaging (Go decoders plus x/image for
    WebP, BMP and TIFF) and encoded to JPEG thumbnails with imaging.Fit.
  - GIF animations are decoded with image/gif and composited frame by frame,
    honoring disposal methods.
  - Animated WebP is decoded and encoded through libvips (govips). Call
    InitVips once at startup; without it animated WebP decodes as a single
    frame and EncodeAnimatedWebP returns ErrVipsUnavailable.
  - Embedded generation parameters are read from PNG tEXt/zTXt/iTXt chunks
    and from EXIF UserComment or ImageDescription in JPEG and WebP files.
    UTF-16 comments are decoded with the byte order inferred from the data,
    since writers often declare it wrong.
  - Video previews are cut with ffmpeg.

# Usage

	if err := codec.InitVips(); err != nil {
	    logging.Warn("libvips unavailable: %v", err)
	}
	defer codec.ShutdownVips()

	c := codec.New()
	text, err := c.ReadTextMetadata(data, ".png")
*/
package codec
